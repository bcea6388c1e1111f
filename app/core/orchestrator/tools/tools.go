package tools

import (
	"tasktalk/app/core/orchestrator/engine"
)

// Tool names shared by the engine's execution records, the persisted
// tool_calls column and the definitions handed to the language model.
const (
	AddTask    = "add_task"
	ListTasks  = "list_tasks"
	UpdateTask = "update_task"
	DeleteTask = "delete_task"
)

// Manifest describes one tool in JSON-schema form.
type Manifest struct {
	Name        string
	Description string
	Parameters  map[string]interface{}
}

// Mutating reports whether a tool call changes stored state. Mutating
// proposals always carry the confirmation requirement.
func Mutating(name string) bool {
	switch name {
	case UpdateTask, DeleteTask:
		return true
	}
	return false
}

// Manifests lists the task tools advertised to the language model. The
// model's calls are advisory; mutations still pass through the
// confirmation flow.
func Manifests() []Manifest {
	return []Manifest{
		{
			Name:        AddTask,
			Description: "Create a new task for the user.",
			Parameters: objectSchema(map[string]interface{}{
				"title":       stringProp("Short task title"),
				"description": stringProp("Longer free-form details"),
				"priority":    enumProp("Task priority", "high", "medium", "low"),
				"due_date":    stringProp("Due date expression, e.g. 'tomorrow 5pm'"),
			}, "title"),
		},
		{
			Name:        ListTasks,
			Description: "List the user's tasks, optionally filtered.",
			Parameters: objectSchema(map[string]interface{}{
				"status":   enumProp("Status filter", "pending", "completed", "all"),
				"priority": enumProp("Priority filter", "high", "medium", "low"),
			}),
		},
		{
			Name:        UpdateTask,
			Description: "Change fields of an existing task, including marking it completed.",
			Parameters: objectSchema(map[string]interface{}{
				"task_id":     numberProp("Numeric id of the task"),
				"title":       stringProp("New title"),
				"description": stringProp("New description"),
				"priority":    enumProp("New priority", "high", "medium", "low"),
				"due_date":    stringProp("New due date expression, empty string to clear"),
				"completed":   boolProp("Completion state"),
			}, "task_id"),
		},
		{
			Name:        DeleteTask,
			Description: "Delete a task permanently.",
			Parameters: objectSchema(map[string]interface{}{
				"task_id": numberProp("Numeric id of the task"),
			}, "task_id"),
		},
	}
}

// IntentFromCall converts a proposed tool call into an engine intent.
// Unknown tools report ok=false and the proposal is dropped.
func IntentFromCall(name string, params map[string]interface{}) (engine.Intent, bool) {
	intent := engine.Intent{Params: map[string]interface{}{}}

	switch name {
	case AddTask:
		intent.Operation = engine.OpAdd
		copyStringParam(params, intent.Params, "title")
		copyStringParam(params, intent.Params, "description")
		copyStringParam(params, intent.Params, "priority")
		copyStringParam(params, intent.Params, "due_date")
	case ListTasks:
		intent.Operation = engine.OpList
		copyStringParam(params, intent.Params, "priority")
		if status, ok := params["status"].(string); ok {
			switch status {
			case "completed":
				intent.Params["completed"] = true
			case "pending":
				intent.Params["completed"] = false
			}
		}
	case UpdateTask:
		intent.Operation = engine.OpUpdate
		intent.TaskID = numericID(params["task_id"])
		copyStringParam(params, intent.Params, "title")
		copyStringParam(params, intent.Params, "description")
		copyStringParam(params, intent.Params, "priority")
		if v, ok := params["due_date"].(string); ok {
			if v == "" {
				intent.Params["due_date"] = nil
			} else {
				intent.Params["due_date"] = v
			}
		}
		if v, ok := params["completed"].(bool); ok {
			intent.Params["completed"] = v
		}
	case DeleteTask:
		intent.Operation = engine.OpDelete
		intent.TaskID = numericID(params["task_id"])
	default:
		return engine.Intent{}, false
	}
	intent.NeedsConfirmation = Mutating(name)
	return intent, true
}

func copyStringParam(src, dst map[string]interface{}, key string) {
	if v, ok := src[key].(string); ok && v != "" {
		dst[key] = v
	}
}

func numericID(v interface{}) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	}
	return 0
}

func objectSchema(properties map[string]interface{}, required ...string) map[string]interface{} {
	schema := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func stringProp(description string) map[string]interface{} {
	return map[string]interface{}{"type": "string", "description": description}
}

func numberProp(description string) map[string]interface{} {
	return map[string]interface{}{"type": "integer", "description": description}
}

func boolProp(description string) map[string]interface{} {
	return map[string]interface{}{"type": "boolean", "description": description}
}

func enumProp(description string, values ...string) map[string]interface{} {
	return map[string]interface{}{"type": "string", "description": description, "enum": values}
}
