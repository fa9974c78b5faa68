package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/hsannu/connect/core"
	"github.com/hsannu/connect/core/chat"
)

type chatApi struct {
	hub      *Hub
	validate *validator.Validate
	logger   core.Logger
}

func registerChatAPI(g *echo.Group, jwt echo.MiddlewareFunc, api *chatApi) {
	cg := g.Group("/chat", jwt, identityMiddleware(), requestContext)

	cg.GET("", api.state)
	cg.POST("/refresh", api.refresh)
	cg.PUT("/search", api.search)
	cg.PUT("/selection", api.selectConversation)
	cg.POST("/messages", api.sendMessage)
	cg.PUT("/viewport", api.viewport)
	cg.POST("/jump-latest", api.jumpToLatest)
}

// controller returns the context user's controller. The first use of a session
// waits for the initial conversation load; its failure is logged, not returned.
func (api *chatApi) controller(ctx echo.Context) (*chat.Controller, error) {
	usr, err := getContextUser(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "getting context user")
	}
	ctrl, err := api.hub.Controller(ctx.Request().Context(), usr)
	if ctrl == nil {
		return nil, errors.Wrap(err, "opening chat session")
	}
	if err != nil {
		if errors.Cause(err) == chat.ErrStopped {
			return nil, err
		}
		api.logger.Warn("initial conversations load failed", err, usr)
	}
	return ctrl, nil
}

// Handlers

func (api *chatApi) state(ctx echo.Context) error {
	ctrl, err := api.controller(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, ctrl.State())
}

func (api *chatApi) refresh(ctx echo.Context) error {
	ctrl, err := api.controller(ctx)
	if err != nil {
		return err
	}
	if err = ctrl.LoadConversations(ctx.Request().Context(), true); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, ctrl.State())
}

func (api *chatApi) search(ctx echo.Context) error {
	var data chat.SearchRequest
	if err := bindAndValidate(ctx, api.validate, &data, "SearchRequest"); err != nil {
		return err
	}
	ctrl, err := api.controller(ctx)
	if err != nil {
		return err
	}
	ctrl.Search(data.Query)
	return ctx.JSON(http.StatusAccepted, ctrl.State())
}

func (api *chatApi) selectConversation(ctx echo.Context) error {
	var data chat.SelectionRequest
	if err := bindAndValidate(ctx, api.validate, &data, "SelectionRequest"); err != nil {
		return err
	}
	ctrl, err := api.controller(ctx)
	if err != nil {
		return err
	}
	if err = ctrl.SelectConversation(ctx.Request().Context(), data.ConversationID); err != nil {
		if errors.Cause(err) == chat.ErrStopped {
			return err
		}
		// the state carries messages_error
		api.logger.Debug("selected conversation failed to load", err, ctrl.User())
	}
	return ctx.JSON(http.StatusOK, ctrl.State())
}

func (api *chatApi) sendMessage(ctx echo.Context) error {
	var data chat.SendRequest
	if err := bindAndValidate(ctx, api.validate, &data, "SendRequest"); err != nil {
		return err
	}
	ctrl, err := api.controller(ctx)
	if err != nil {
		return err
	}
	msg, err := ctrl.SendMessage(ctx.Request().Context(), data.Content)
	if err != nil {
		return err
	}
	if msg == nil {
		// no active conversation, or a send already in flight
		return ctx.NoContent(http.StatusNoContent)
	}
	return ctx.JSON(http.StatusCreated, msg)
}

func (api *chatApi) viewport(ctx echo.Context) error {
	var data chat.ViewportRequest
	if err := bindAndValidate(ctx, api.validate, &data, "ViewportRequest"); err != nil {
		return err
	}
	ctrl, err := api.controller(ctx)
	if err != nil {
		return err
	}
	ctrl.SetAtBottom(*data.AtBottom)
	return ctx.JSON(http.StatusOK, ctrl.State())
}

func (api *chatApi) jumpToLatest(ctx echo.Context) error {
	ctrl, err := api.controller(ctx)
	if err != nil {
		return err
	}
	ctrl.JumpToLatest()
	return ctx.JSON(http.StatusOK, ctrl.State())
}
