package business

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-yaml"

	slogctx "github.com/veqryn/slog-context"

	"github.com/openkcm/session-client/internal/apiclient"
	"github.com/openkcm/session-client/internal/cmdutils"
	"github.com/openkcm/session-client/internal/config"
	"github.com/openkcm/session-client/internal/serviceerr"
	"github.com/openkcm/session-client/internal/session"
	"github.com/openkcm/session-client/internal/settings"
)

type OutputFormat string

const (
	OutputJSON OutputFormat = "json"
	OutputYAML OutputFormat = "yaml"
)

type clientFactory func(context.Context, *config.Config) (*Client, error)

// LoginMain stores the token given as the only argument, or read from
// stdin when the argument is "-".
func LoginMain(ctx context.Context, cfg *config.Config, inv cmdutils.Invocation) error {
	return login(ctx, cfg, inv, NewClient, os.Stdin)
}

func login(ctx context.Context, cfg *config.Config, inv cmdutils.Invocation, newClient clientFactory, stdin io.Reader) error {
	if len(inv.Args) != 1 {
		return serviceerr.Validation("Exactly one token is required")
	}

	tok := inv.Args[0]
	if tok == "-" {
		data, err := io.ReadAll(io.LimitReader(stdin, 64<<10))
		if err != nil {
			return fmt.Errorf("reading token from stdin: %w", err)
		}
		tok = strings.TrimSpace(string(data))
	}

	c, err := newClient(ctx, cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.Guard.Login(ctx, tok); err != nil {
		return err
	}

	return writeYAML(inv.Out, statusOf(c, session.StateAuthenticated, tok))
}

func LogoutMain(ctx context.Context, cfg *config.Config, inv cmdutils.Invocation) error {
	return logout(ctx, cfg, inv, NewClient)
}

func logout(ctx context.Context, cfg *config.Config, inv cmdutils.Invocation, newClient clientFactory) error {
	c, err := newClient(ctx, cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.Guard.Logout(ctx); err != nil {
		return err
	}

	return writeYAML(inv.Out, statusView{State: session.StateUnauthenticated})
}

// StatusMain validates the stored token, clearing it when it is no longer
// usable, and prints the resulting session state.
func StatusMain(ctx context.Context, cfg *config.Config, inv cmdutils.Invocation) error {
	return status(ctx, cfg, inv, NewClient)
}

func status(ctx context.Context, cfg *config.Config, inv cmdutils.Invocation, newClient clientFactory) error {
	c, err := newClient(ctx, cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	state, err := c.Guard.Validate(ctx)
	if err != nil {
		return err
	}

	tok, _ := c.Tokens.Retrieve(ctx)

	return writeYAML(inv.Out, statusOf(c, state, tok))
}

type statusView struct {
	State     session.State `yaml:"state"`
	Subject   string        `yaml:"subject,omitempty"`
	Issuer    string        `yaml:"issuer,omitempty"`
	ExpiresAt *time.Time    `yaml:"expiresAt,omitempty"`
}

func statusOf(c *Client, state session.State, tok string) statusView {
	view := statusView{State: state}
	if state != session.StateAuthenticated || tok == "" {
		return view
	}

	payload, err := c.Validator.Validate(tok)
	if err != nil || payload == nil {
		return view
	}

	view.Subject = payload.Subject
	view.Issuer = payload.Issuer
	if exp, ok := payload.ExpiresAt(); ok {
		view.ExpiresAt = &exp
	}

	return view
}

// CallRequest describes an API call issued from the command line.
type CallRequest struct {
	Body    string
	Query   []string
	Headers []string
	Timeout time.Duration
	Output  OutputFormat
}

// CallMain returns the command that sends METHOD PATH with req.
func CallMain(req *CallRequest) cmdutils.BusinessFunc {
	return func(ctx context.Context, cfg *config.Config, inv cmdutils.Invocation) error {
		return call(ctx, cfg, inv, req, NewClient)
	}
}

func call(ctx context.Context, cfg *config.Config, inv cmdutils.Invocation, req *CallRequest, newClient clientFactory) error {
	if len(inv.Args) != 2 {
		return serviceerr.Validation("A method and a path are required")
	}
	method, path := strings.ToUpper(inv.Args[0]), inv.Args[1]

	opts, err := req.callOptions()
	if err != nil {
		return err
	}

	var body any
	if req.Body != "" {
		body = json.RawMessage(req.Body)
	}

	c, err := newClient(ctx, cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	data, err := c.API.Call(ctx, method, path, body, opts...)
	if err != nil {
		return handleAPIError(ctx, c, err)
	}

	return writeBody(inv.Out, data, req.Output)
}

func (r *CallRequest) callOptions() ([]apiclient.CallOption, error) {
	var opts []apiclient.CallOption

	if r.Timeout > 0 {
		opts = append(opts, apiclient.WithCallTimeout(r.Timeout))
	}

	query := url.Values{}
	for _, kv := range r.Query {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return nil, serviceerr.Validation(fmt.Sprintf("Invalid query parameter %q, expected key=value", kv))
		}
		query.Add(k, v)
	}
	if len(query) > 0 {
		opts = append(opts, apiclient.WithQuery(query))
	}

	for _, kv := range r.Headers {
		k, v, ok := strings.Cut(kv, ":")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, serviceerr.Validation(fmt.Sprintf("Invalid header %q, expected Name: value", kv))
		}
		opts = append(opts, apiclient.WithHeader(strings.TrimSpace(k), strings.TrimSpace(v)))
	}

	return opts, nil
}

// UploadRequest describes a multipart upload issued from the command line.
type UploadRequest struct {
	Field       string
	ContentType string
	Fields      []string
	Output      OutputFormat
}

// UploadMain returns the command that posts FILE to PATH.
func UploadMain(req *UploadRequest) cmdutils.BusinessFunc {
	return func(ctx context.Context, cfg *config.Config, inv cmdutils.Invocation) error {
		return upload(ctx, cfg, inv, req, NewClient)
	}
}

func upload(ctx context.Context, cfg *config.Config, inv cmdutils.Invocation, req *UploadRequest, newClient clientFactory) error {
	if len(inv.Args) != 2 {
		return serviceerr.Validation("A path and a file are required")
	}
	path, filePath := inv.Args[0], inv.Args[1]

	fields := map[string]string{}
	for _, kv := range req.Fields {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return serviceerr.Validation(fmt.Sprintf("Invalid form field %q, expected key=value", kv))
		}
		fields[k] = v
	}

	f, err := os.Open(filePath)
	if err != nil {
		return serviceerr.New(serviceerr.KindValidation, "Could not open the file", err)
	}
	defer f.Close()

	contentType := req.ContentType
	if contentType == "" {
		contentType = mime.TypeByExtension(filepath.Ext(filePath))
	}

	c, err := newClient(ctx, cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	data, err := c.API.Call(ctx, http.MethodPost, path, apiclient.File{
		Field:       req.Field,
		Name:        filepath.Base(filePath),
		ContentType: contentType,
		Content:     f,
		Fields:      fields,
	})
	if err != nil {
		return handleAPIError(ctx, c, err)
	}

	return writeBody(inv.Out, data, req.Output)
}

// SettingsMain prints the notification settings, applying any
// name=bool arguments first.
func SettingsMain(ctx context.Context, cfg *config.Config, inv cmdutils.Invocation) error {
	return notificationSettings(ctx, cfg, inv, NewClient)
}

func notificationSettings(ctx context.Context, cfg *config.Config, inv cmdutils.Invocation, newClient clientFactory) error {
	changes, err := parseSettingChanges(inv.Args)
	if err != nil {
		return err
	}

	c, err := newClient(ctx, cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	var current settings.Settings
	if len(changes) == 0 {
		current, err = c.Settings.Load(ctx)
	} else {
		current, err = c.Settings.Update(ctx, func(s *settings.Settings) {
			for _, change := range changes {
				change(s)
			}
		})
	}
	if err != nil {
		return err
	}

	return writeYAML(inv.Out, current)
}

func parseSettingChanges(args []string) ([]func(*settings.Settings), error) {
	changes := make([]func(*settings.Settings), 0, len(args))
	for _, arg := range args {
		name, raw, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, serviceerr.Validation(fmt.Sprintf("Invalid setting %q, expected name=true|false", arg))
		}

		enabled, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, serviceerr.Validation(fmt.Sprintf("Invalid value %q for %s", raw, name))
		}

		switch strings.ToLower(name) {
		case "push":
			changes = append(changes, func(s *settings.Settings) { s.PushEnabled = enabled })
		case "sound":
			changes = append(changes, func(s *settings.Settings) { s.SoundEnabled = enabled })
		case "vibration":
			changes = append(changes, func(s *settings.Settings) { s.VibrationEnabled = enabled })
		case "badge":
			changes = append(changes, func(s *settings.Settings) { s.BadgeEnabled = enabled })
		default:
			return nil, serviceerr.Validation(fmt.Sprintf("Unknown setting %q", name))
		}
	}

	return changes, nil
}

// WatchMain keeps validating the session until ctx is done.
func WatchMain(ctx context.Context, cfg *config.Config, inv cmdutils.Invocation) error {
	return watch(ctx, cfg, inv, NewClient)
}

func watch(ctx context.Context, cfg *config.Config, inv cmdutils.Invocation, newClient clientFactory) error {
	c, err := newClient(ctx, cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	err = c.Guard.Subscribe(func(tr session.Transition) {
		slogctx.Info(ctx, "Session state changed", "from", tr.From, "to", tr.To, "reason", tr.Reason)
		_, _ = fmt.Fprintf(inv.Out, "%s -> %s (%s)\n", tr.From, tr.To, tr.Reason)
	})
	if err != nil {
		return fmt.Errorf("subscribing to session transitions: %w", err)
	}

	slogctx.Info(ctx, "Starting session watch", "interval", cfg.Session.WatchInterval)

	return c.Guard.Watch(ctx, cfg.Session.WatchInterval)
}

// handleAPIError ends the session when the backend rejected the token.
func handleAPIError(ctx context.Context, c *Client, err error) error {
	loggedOut, logoutErr := c.Guard.HandleError(ctx, err)
	if loggedOut {
		slogctx.Info(ctx, "Session ended after the API rejected the token")
	}

	if logoutErr != nil {
		return errors.Join(err, logoutErr)
	}

	return err
}

func writeBody(w io.Writer, data []byte, format OutputFormat) error {
	if len(data) == 0 {
		return nil
	}

	if format == OutputYAML {
		out, err := yaml.JSONToYAML(data)
		if err != nil {
			return serviceerr.New(serviceerr.KindUnknown, "Unexpected response from the server", err)
		}
		_, err = w.Write(out)
		return err
	}

	_, err := fmt.Fprintln(w, string(data))
	return err
}

func writeYAML(w io.Writer, v any) error {
	out, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}

	_, err = w.Write(out)
	return err
}
