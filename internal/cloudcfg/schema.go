package cloudcfg

// cloudsSchema is the JSON schema clouds.yaml documents are validated
// against. It pins the structural shape; unknown auth keys are rejected
// so typos surface as errors instead of silently-ignored credentials.
const cloudsSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["clouds"],
  "properties": {
    "clouds": {
      "type": "object",
      "additionalProperties": {
        "type": "object",
        "properties": {
          "auth": {
            "type": "object",
            "properties": {
              "auth_url": {"type": "string"},
              "username": {"type": "string"},
              "user_id": {"type": "string"},
              "password": {"type": "string"},
              "token": {"type": "string"},
              "user_domain_id": {"type": "string"},
              "user_domain_name": {"type": "string"},
              "project_id": {"type": "string"},
              "project_name": {"type": "string"},
              "project_domain_id": {"type": "string"},
              "project_domain_name": {"type": "string"},
              "tenant_id": {"type": "string"},
              "tenant_name": {"type": "string"}
            },
            "additionalProperties": false
          },
          "identity_api_version": {"type": "string"},
          "verify": {"type": "boolean"},
          "key_manager_endpoint_override": {"type": "string"}
        },
        "additionalProperties": false
      }
    }
  }
}`
