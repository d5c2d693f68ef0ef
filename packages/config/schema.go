package config

// configSchema is the JSON schema every loaded config must satisfy.
const configSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "testRoot": {"type": "string", "minLength": 1},
    "pattern": {"type": "string", "minLength": 1},
    "suffix": {"type": "string", "pattern": "^\\..+"},
    "minPasses": {"type": "integer", "minimum": 0},
    "debounceMs": {"type": "integer", "minimum": 0, "maximum": 60000},
    "historyPath": {"type": "string"},
    "noColor": {"type": "boolean"},
    "runtime": {
      "type": "object",
      "properties": {
        "command": {"type": "string", "minLength": 1},
        "args": {"type": "array", "items": {"type": "string"}}
      },
      "required": ["command"]
    },
    "notify": {
      "type": "object",
      "properties": {
        "on": {"enum": ["always", "failure", "success", "recovery"]},
        "slackWebhook": {"type": "string"},
        "slackChannel": {"type": "string"},
        "teamsWebhook": {"type": "string"}
      }
    }
  },
  "required": ["runtime"]
}`
