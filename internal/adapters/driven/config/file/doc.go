// Package file provides the file-based configuration adapters: the TOML
// ConfigStore under ~/.chatbot, prompt templates under ~/.chatbot/prompts,
// and LoadSettings, which layers defaults, the TOML keys and the
// environment (optionally read from a .env file) into domain.Settings.
package file
