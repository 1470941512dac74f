package repl

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"gradehub/internal/cli/command"
	"gradehub/internal/cli/config"
	httpclient "gradehub/internal/cli/http"
	"gradehub/internal/cli/poll"
	"gradehub/internal/cli/state"
	"gradehub/internal/submission/model"
	pkgerrors "gradehub/pkg/errors"

	"github.com/google/shlex"
)

// Session holds REPL state.
type Session struct {
	client       *httpclient.Client
	commands     map[string]command.Command
	cliState     *state.State
	statePath    string
	prettyJSON   bool
	pollCfg      poll.Config
	watcher      *poll.Watcher
	outputWriter *bufio.Writer
}

func New(client *httpclient.Client, commands map[string]command.Command, cliState *state.State, cfg config.Config) *Session {
	return &Session{
		client:     client,
		commands:   commands,
		cliState:   cliState,
		statePath:  cfg.StatePath,
		prettyJSON: cfg.PrettyJSON == nil || *cfg.PrettyJSON,
		pollCfg: poll.Config{
			Interval:    cfg.Poll.Interval,
			MaxAttempts: cfg.Poll.MaxAttempts,
		},
		watcher:      poll.NewWatcher(),
		outputWriter: bufio.NewWriter(os.Stdout),
	}
}

func (s *Session) Run(ctx context.Context) {
	reader := bufio.NewReader(os.Stdin)
	for {
		_, _ = s.outputWriter.WriteString("gradehub> ")
		_ = s.outputWriter.Flush()
		line, err := reader.ReadString('\n')
		if err != nil {
			s.printLine("read input failed: %v", err)
			return
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if s.handleSystemCommand(line) {
			continue
		}

		if err := s.handleCommand(ctx, reader, line); err != nil {
			s.printLine("error: %v", err)
		}
	}
}

func (s *Session) handleSystemCommand(line string) bool {
	switch line {
	case "exit", "quit":
		s.watcher.Stop()
		s.printLine("bye")
		os.Exit(0)
	case "help":
		s.printHelp()
		return true
	}
	if strings.HasPrefix(line, "set ") {
		s.handleSet(strings.TrimSpace(strings.TrimPrefix(line, "set ")))
		return true
	}
	if strings.HasPrefix(line, "show ") {
		s.handleShow(strings.TrimSpace(strings.TrimPrefix(line, "show ")))
		return true
	}
	return false
}

func (s *Session) handleSet(args string) {
	parts := strings.Fields(args)
	if len(parts) == 0 {
		s.printLine("usage: set base|timeout|interval")
		return
	}
	switch parts[0] {
	case "base":
		if len(parts) < 2 {
			s.printLine("usage: set base http://127.0.0.1:8080")
			return
		}
		s.client.SetBaseURL(parts[1])
		s.printLine("base set to %s", parts[1])
	case "timeout":
		if len(parts) < 2 {
			s.printLine("usage: set timeout 10s")
			return
		}
		dur, err := time.ParseDuration(parts[1])
		if err != nil {
			s.printLine("invalid duration: %v", err)
			return
		}
		s.client.SetTimeout(dur)
		s.printLine("timeout set to %s", dur)
	case "interval":
		if len(parts) < 2 {
			s.printLine("usage: set interval 30s")
			return
		}
		dur, err := time.ParseDuration(parts[1])
		if err != nil {
			s.printLine("invalid duration: %v", err)
			return
		}
		s.pollCfg.Interval = dur
		s.printLine("poll interval set to %s", dur)
	default:
		s.printLine("unknown set command")
	}
}

func (s *Session) handleShow(args string) {
	switch args {
	case "config":
		s.printLine("base: %s", s.client.BaseURL())
		s.printLine("timeout: %s", s.client.Timeout())
		s.printLine("poll interval: %s", s.pollCfg.Interval)
		s.printLine("poll max attempts: %d", s.pollCfg.MaxAttempts)
		s.printLine("statePath: %s", s.statePath)
	case "last":
		if s.cliState.LastSubmissionID == "" {
			s.printLine("last submission: <none>")
			return
		}
		s.printLine("last submission: %s (submitted %s)",
			s.cliState.LastSubmissionID, s.cliState.SubmittedAt.Format(time.RFC3339))
	default:
		s.printLine("usage: show config|last")
	}
}

func (s *Session) handleCommand(ctx context.Context, reader *bufio.Reader, line string) error {
	tokens, err := shlex.Split(line)
	if err != nil {
		return fmt.Errorf("parse command failed: %w", err)
	}
	if len(tokens) < 2 {
		return fmt.Errorf("invalid command, use: <service> <action> key=value ...")
	}
	service := tokens[0]
	action := tokens[1]
	key := fmt.Sprintf("%s %s", service, action)
	cmd, ok := s.commands[key]
	if !ok {
		return fmt.Errorf("unknown command: %s %s", service, action)
	}
	params := command.Params{}
	for _, token := range tokens[2:] {
		parts := strings.SplitN(token, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid param: %s", token)
		}
		params.Set(parts[0], parts[1])
	}

	s.applyParamShortcuts(&cmd, params)
	if err := s.promptMissing(reader, &cmd, params); err != nil {
		return err
	}

	if cmd.Service == "submission" && cmd.Action == "watch" {
		return s.runWatch(ctx, reader, params.Get("id"))
	}

	req, err := command.BuildRequest(cmd, params)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(ctx, req.Method, req.Path, req.Headers, req.Body)
	if err != nil {
		return err
	}
	s.renderResponse(resp)
	s.rememberSubmission(cmd, resp)
	return nil
}

func (s *Session) applyParamShortcuts(cmd *command.Command, params command.Params) {
	if cmd.Service == "submission" && cmd.Action == "create" {
		if params.Get("content_file") != "" && params.Get("content") == "" {
			params.Set("content", "_file_")
		}
	}
	if cmd.Service == "submission" && (cmd.Action == "status" || cmd.Action == "watch") {
		if params.Get("id") == "" && s.cliState.LastSubmissionID != "" {
			params.Set("id", s.cliState.LastSubmissionID)
		}
	}
}

func (s *Session) promptMissing(reader *bufio.Reader, cmd *command.Command, params command.Params) error {
	for _, field := range cmd.Fields {
		if !field.Required {
			continue
		}
		if params.Has(field.Name) && params.Get(field.Name) != "" {
			continue
		}
		value, err := s.promptValue(reader, field.Prompt)
		if err != nil {
			return err
		}
		params.Set(field.Name, value)
	}
	return nil
}

func (s *Session) promptValue(reader *bufio.Reader, prompt string) (string, error) {
	s.printLine("%s:", prompt)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("read input failed: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func (s *Session) runWatch(ctx context.Context, reader *bufio.Reader, submissionID string) error {
	if submissionID == "" {
		return fmt.Errorf("submission id is required")
	}

	sess := s.watcher.Watch(ctx, submissionID, s.statusFetcher(), s.pollCfg)
	s.printLine("watching submission %s (interval %s, press enter to stop)", submissionID, s.pollCfg.Interval)

	go func() {
		_, _ = reader.ReadString('\n')
		sess.Stop()
	}()

	reason := poll.StopManual
	for ev := range sess.Events() {
		switch {
		case ev.Done:
			reason = ev.Reason
			s.printLine("watch ended: %s (%d queries)", ev.Reason, ev.Attempt)
		case ev.Err != nil:
			s.printLine("query %d failed: %v", ev.Attempt, ev.Err)
		default:
			s.renderProjection(ev.Attempt, *ev.Status)
		}
	}
	if reason != poll.StopManual {
		s.printLine("press enter to return to the prompt")
	}
	return nil
}

func (s *Session) statusFetcher() poll.StatusFunc {
	return func(ctx context.Context, submissionID string) (model.StatusProjection, error) {
		resp, err := s.client.Do(ctx, http.MethodGet, "/api/submissions/"+submissionID, nil, nil)
		if err != nil {
			return model.StatusProjection{}, err
		}
		switch resp.StatusCode {
		case http.StatusOK:
			var proj model.StatusProjection
			if err := json.Unmarshal(resp.Body, &proj); err != nil {
				return model.StatusProjection{}, fmt.Errorf("decode status failed: %w", err)
			}
			return proj, nil
		case http.StatusTooManyRequests:
			return model.StatusProjection{}, pkgerrors.New(pkgerrors.TooManyRequests).WithMessage(serverError(resp.Body))
		case http.StatusNotFound:
			return model.StatusProjection{}, pkgerrors.New(pkgerrors.SubmissionNotFound).WithMessage(serverError(resp.Body))
		default:
			return model.StatusProjection{}, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, serverError(resp.Body))
		}
	}
}

func serverError(body []byte) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	return strings.TrimSpace(string(body))
}

func (s *Session) renderProjection(attempt int, proj model.StatusProjection) {
	line := fmt.Sprintf("[%d] %s status=%s", attempt, proj.SubmissionID, proj.Status)
	if proj.Score != nil {
		line += fmt.Sprintf(" score=%d", *proj.Score)
	}
	if proj.Feedback != "" {
		line += fmt.Sprintf(" feedback=%q", proj.Feedback)
	}
	s.printLine("%s", line)
}

func (s *Session) renderResponse(resp httpclient.ResponseInfo) {
	s.printLine("HTTP %d (%s)", resp.StatusCode, resp.Duration)
	if len(resp.Body) == 0 {
		return
	}
	if s.prettyJSON {
		var raw interface{}
		if err := json.Unmarshal(resp.Body, &raw); err == nil {
			formatted, _ := json.MarshalIndent(raw, "", "  ")
			s.printLine("%s", string(formatted))
			return
		}
	}
	s.printLine("%s", string(resp.Body))
}

func (s *Session) rememberSubmission(cmd command.Command, resp httpclient.ResponseInfo) {
	if cmd.Service != "submission" || cmd.Action != "create" {
		return
	}
	if resp.StatusCode != http.StatusCreated {
		return
	}
	var payload struct {
		SubmissionID string `json:"submissionId"`
	}
	if err := json.Unmarshal(resp.Body, &payload); err != nil || payload.SubmissionID == "" {
		return
	}
	s.cliState.LastSubmissionID = payload.SubmissionID
	s.cliState.SubmittedAt = time.Now()
	if err := state.Save(s.statePath, *s.cliState); err != nil {
		s.printLine("save state failed: %v", err)
	}
}

func (s *Session) printHelp() {
	s.printLine("usage: <service> <action> key=value ...")
	s.printLine("system: help | exit | set base|timeout|interval | show config|last")
	s.printLine("examples:")
	s.printLine("  submission create student_id=s-1 assignment_id=a-1 content=\"my essay text\"")
	s.printLine("  submission create student_id=s-1 assignment_id=a-1 content_file=./essay.txt")
	s.printLine("  submission status id=<submission_id>")
	s.printLine("  submission watch id=<submission_id>")
	s.printLine("  service health")
}

func (s *Session) printLine(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(s.outputWriter, format+"\n", args...)
	_ = s.outputWriter.Flush()
}
