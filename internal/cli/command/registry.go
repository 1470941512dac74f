package command

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Registry returns all CLI commands keyed by "service action".
func Registry() map[string]Command {
	commands := []Command{
		{
			Service:      "submission",
			Action:       "create",
			Method:       "POST",
			PathTemplate: "/api/submissions",
			Fields: []Field{
				{Name: "student_id", Aliases: []string{"student"}, Prompt: "student_id", Type: FieldString, Required: true},
				{Name: "assignment_id", Aliases: []string{"assignment"}, Prompt: "assignment_id", Type: FieldString, Required: true},
				{Name: "content", Prompt: "content", Type: FieldString, Required: true},
				{Name: "content_file", Prompt: "content_file", Type: FieldFile, Required: false},
			},
		},
		{
			Service:      "submission",
			Action:       "status",
			Method:       "GET",
			PathTemplate: "/api/submissions/:id",
			Fields: []Field{
				{Name: "id", Prompt: "submission_id", Type: FieldString, Required: true},
			},
		},
		{
			Service:      "submission",
			Action:       "watch",
			Method:       "GET",
			PathTemplate: "/api/submissions/:id",
			Fields: []Field{
				{Name: "id", Prompt: "submission_id", Type: FieldString, Required: true},
			},
		},
		{
			Service:      "service",
			Action:       "health",
			Method:       "GET",
			PathTemplate: "/api/healthz",
		},
	}

	registry := make(map[string]Command, len(commands))
	for _, cmd := range commands {
		registry[fmt.Sprintf("%s %s", cmd.Service, cmd.Action)] = cmd
	}
	return registry
}

// BuildRequest constructs the HTTP request for a command with the given
// params.
func BuildRequest(cmd Command, params Params) (RequestSpec, error) {
	params.Canonicalize(cmd.Fields)

	path, err := buildPath(cmd.PathTemplate, params)
	if err != nil {
		return RequestSpec{}, err
	}

	payload, err := buildPayload(cmd, params)
	if err != nil {
		return RequestSpec{}, err
	}

	var body []byte
	if payload != nil {
		body, err = json.Marshal(payload)
		if err != nil {
			return RequestSpec{}, fmt.Errorf("marshal request body failed: %w", err)
		}
	}

	return RequestSpec{
		Method:  cmd.Method,
		Path:    path,
		Headers: map[string]string{},
		Body:    body,
	}, nil
}

func buildPath(template string, params Params) (string, error) {
	path := template
	if strings.Contains(path, ":id") {
		value := params.Get("id")
		if value == "" {
			return "", fmt.Errorf("missing path parameter: id")
		}
		path = strings.ReplaceAll(path, ":id", value)
	}
	return path, nil
}

func buildPayload(cmd Command, params Params) (interface{}, error) {
	if cmd.Service == "submission" && cmd.Action == "create" {
		return buildSubmissionCreatePayload(params)
	}
	return nil, nil
}

func buildSubmissionCreatePayload(params Params) (interface{}, error) {
	content := params.Get("content")
	if (content == "" || content == "_file_") && params.Get("content_file") != "" {
		data, err := ReadFile(params.Get("content_file"))
		if err != nil {
			return nil, err
		}
		content = data
	}
	if content == "" {
		return nil, fmt.Errorf("content is required")
	}

	return map[string]string{
		"studentId":    params.Get("student_id"),
		"assignmentId": params.Get("assignment_id"),
		"content":      content,
	}, nil
}
