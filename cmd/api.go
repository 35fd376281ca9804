package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/chordypi/internal/services"
	"github.com/desertthunder/chordypi/internal/shared"
)

// client returns the API client, carrying --user as X-Pi-User when set.
func (r *Runner) client(cmd *cli.Command) *services.APIService {
	if uid := cmd.String("user"); uid != "" {
		return r.api.WithHeader("X-Pi-User", uid)
	}
	return r.api
}

// APIGet prints the response of a GET against the configured server.
func (r *Runner) APIGet(ctx context.Context, cmd *cli.Command) error {
	return r.request(ctx, cmd, http.MethodGet, false)
}

// APIPost sends --data as a JSON body. --data is required.
func (r *Runner) APIPost(ctx context.Context, cmd *cli.Command) error {
	return r.request(ctx, cmd, http.MethodPost, true)
}

// APIDelete sends a DELETE with an optional JSON body from --data.
func (r *Runner) APIDelete(ctx context.Context, cmd *cli.Command) error {
	return r.request(ctx, cmd, http.MethodDelete, false)
}

func (r *Runner) request(ctx context.Context, cmd *cli.Command, method string, needsBody bool) error {
	path := cmd.StringArg("path")
	if path == "" {
		return fmt.Errorf("%w: path", shared.ErrMissingArgument)
	}

	var body []byte
	if data := cmd.String("data"); data != "" {
		if err := validJSON(data); err != nil {
			return err
		}
		body = []byte(data)
	} else if needsBody {
		return fmt.Errorf("%w: --data flag is required", shared.ErrMissingArgument)
	}

	r.logger.Info("api request", "method", method, "path", path)

	api := r.client(cmd)
	var (
		resp *services.APIResponse
		err  error
	)
	switch method {
	case http.MethodPost:
		resp, err = api.Post(ctx, path, body)
	case http.MethodDelete:
		resp, err = api.Delete(ctx, path, body)
	default:
		resp, err = api.Get(ctx, path)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	return r.writeResponse(resp, method != http.MethodGet || !cmd.Bool("json"))
}

func (r *Runner) writeResponse(resp *services.APIResponse, pretty bool) error {
	if !resp.OK() {
		return fmt.Errorf("%w: status %d, body: %s", shared.ErrAPIRequest, resp.StatusCode, string(resp.Body))
	}

	if resp.IsJSON {
		return r.writeJSON(resp.JSONData, pretty)
	}

	return r.emit(string(resp.Body) + "\n")
}

func validJSON(data string) error {
	var v any
	if err := json.Unmarshal([]byte(data), &v); err != nil {
		return fmt.Errorf("%w: data is not valid JSON: %v", shared.ErrInvalidInput, err)
	}
	return nil
}
