package agent

import (
	"encoding/json"
	"fmt"

	"github.com/ShayCichocki/lincoln/pkg/models"
)

// variantFields pins the sub-variant a task type implies.
var variantFields = map[string][2]string{
	"generate_ebook":        {"product_type", ProductEbook},
	"generate_template":     {"product_type", ProductTemplate},
	"create_social_content": {"format", FormatSocial},
	"create_video_script":   {"format", FormatVideoScript},
}

// PayloadForTaskType maps a capability request such as {"task_type": "review_code", ...}
// to an agent kind and the payload that agent expects. The task_type field is dropped.
func PayloadForTaskType(taskType string, fields map[string]json.RawMessage) (models.AgentKind, json.RawMessage, error) {
	if taskType == "" {
		return "", nil, fmt.Errorf("%w: task_type is required", ErrInvalidPayload)
	}
	kind, ok := models.KindForTaskType(taskType)
	if !ok {
		return "", nil, fmt.Errorf("%w: task_type %q", ErrUnknownKind, taskType)
	}

	payload := make(map[string]json.RawMessage, len(fields)+1)
	for k, v := range fields {
		if k == "task_type" {
			continue
		}
		payload[k] = v
	}
	if vf, ok := variantFields[taskType]; ok {
		payload[vf[0]], _ = json.Marshal(vf[1])
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return kind, raw, nil
}
