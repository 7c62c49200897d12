package commands

import (
	"context"
	"errors"
	"fmt"

	"git.skobk.in/skobkin/telegram-group-keeper-bot/apperr"
	"git.skobk.in/skobkin/telegram-group-keeper-bot/chat"
	"git.skobk.in/skobkin/telegram-group-keeper-bot/dispatch"
	"git.skobk.in/skobkin/telegram-group-keeper-bot/lookup"
	"git.skobk.in/skobkin/telegram-group-keeper-bot/roles"
	"git.skobk.in/skobkin/telegram-group-keeper-bot/telemetry"
)

func (h *Handlers) media() dispatch.Group {
	return dispatch.Group{Name: GroupMedia, Routes: []dispatch.Route{
		{Command: "movie", Aliases: []string{"movieinfo"}, Role: roles.Member, Handler: h.movie, Usage: "movie details from OMDb"},
		{Command: "anime", Aliases: []string{"animeinfo"}, Role: roles.Member, Handler: h.anime, Usage: "anime details from MyAnimeList"},
	}}
}

func (h *Handlers) movie(ctx context.Context, req *dispatch.Request) error {
	if h.deps.Movies == nil {
		return validation("Movie search is currently unavailable.")
	}
	if req.Raw == "" {
		return validation(fmt.Sprintf("Please provide a movie title.\nExample: %smovie The Matrix", req.Prefix))
	}

	req.React(ctx, chat.ReactionWaiting)
	ctx, cancel := context.WithTimeout(ctx, h.deps.LookupTimeout)
	defer cancel()

	movie, err := h.deps.Movies.Movie(ctx, req.Raw)
	switch {
	case errors.Is(err, lookup.ErrNotConfigured):
		return validation("Movie search is currently unavailable. Please configure an OMDb API key.")
	case errors.Is(err, lookup.ErrNotFound):
		return apperr.Wrap(apperr.NotFound, fmt.Sprintf("Movie not found: %q\nPlease check the title and try again.", req.Raw), err)
	case err != nil:
		return apperr.Wrap(apperr.Transient, "movie lookup failed", err)
	}

	telemetry.Logger(ctx).Info("commands: Movie info fetched", "title", req.Raw)
	req.React(ctx, chat.ReactionOK)
	return req.Reply(ctx, movie.Format())
}

func (h *Handlers) anime(ctx context.Context, req *dispatch.Request) error {
	if h.deps.Anime == nil {
		return validation("Anime search is currently unavailable.")
	}
	if req.Raw == "" {
		return validation(fmt.Sprintf("Please provide an anime title.\nExample: %sanime Attack on Titan", req.Prefix))
	}

	req.React(ctx, chat.ReactionWaiting)
	ctx, cancel := context.WithTimeout(ctx, h.deps.LookupTimeout)
	defer cancel()

	anime, err := h.deps.Anime.Anime(ctx, req.Raw)
	switch {
	case errors.Is(err, lookup.ErrNotFound):
		return apperr.Wrap(apperr.NotFound, fmt.Sprintf("Anime not found: %q\nPlease check the title and try again.", req.Raw), err)
	case err != nil:
		return apperr.Wrap(apperr.Transient, "anime lookup failed", err)
	}

	telemetry.Logger(ctx).Info("commands: Anime info fetched", "title", req.Raw)
	req.React(ctx, chat.ReactionOK)
	return req.Reply(ctx, anime.Format())
}
