package rest

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/socialpin/pin"
)

type ProfileController struct {
	Profiles   pin.ProfileStore
	Dispatcher pin.JobDispatcher
}

func (c *ProfileController) InstallTo(app *fiber.App) {
	app.Get("/profile/:id", c.serveProfile)
	app.Post("/profile", c.serveSubmitScrape)
}

func (c *ProfileController) serveProfile(ctx *fiber.Ctx) error {
	idStr := ctx.Params("id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid profile id")
	}

	profile, err := c.Profiles.ById(ctx.Context(), pin.ProfileId(id))
	if err != nil {
		if errors.Is(err, pin.ErrProfileNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "profile not found")
		}
		return fmt.Errorf("get profile by id: %w", err)
	}

	type ProfileResponse struct {
		Id            int64    `json:"id"`
		Site          pin.Site `json:"site"`
		ExternalId    string   `json:"external_id"`
		Name          string   `json:"name"`
		Description   string   `json:"description"`
		PostCount     int      `json:"post_count"`
		FriendCount   int      `json:"friend_count"`
		FollowerCount int      `json:"follower_count"`
	}
	return ctx.JSON(ProfileResponse{
		Id:            int64(profile.Id),
		Site:          profile.Site,
		ExternalId:    profile.ExternalId,
		Name:          profile.Name,
		Description:   profile.Description,
		PostCount:     profile.PostCount,
		FriendCount:   profile.FriendCount,
		FollowerCount: profile.FollowerCount,
	})
}

func (c *ProfileController) serveSubmitScrape(ctx *fiber.Ctx) error {
	body := struct {
		Site string `json:"site"`
		Name string `json:"name"`
	}{}
	if err := ctx.BodyParser(&body); err != nil {
		RequestLog(ctx).WithError(err).Infoln("Invalid body.")
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}
	if body.Name == "" {
		return fiber.NewError(fiber.StatusBadRequest, "missing name")
	}
	site, err := pin.ParseSite(body.Site)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "unsupported site")
	}

	if err := c.Dispatcher.EnqueueScrape(ctx.Context(), site, body.Name); err != nil {
		return fmt.Errorf("enqueue scrape: %w", err)
	}
	return ctx.Status(fiber.StatusAccepted).JSON(map[string]string{
		"status": "queued",
	})
}
