package models

import (
	"smartgreenhouse/internal/editor"
	"smartgreenhouse/internal/models"
)

type LoginRequest struct {
	Token     string `json:"token" binding:"required"`
	Role      string `json:"role"`
	UserID    int    `json:"user_id"`
	ExpiresIn int64  `json:"expires_in"`
}

type ToggleRequest struct {
	Enabled *bool `json:"enabled"`
}

type LoadView struct {
	GreenhouseID int    `json:"gh_id,omitempty"`
	Loading      bool   `json:"loading"`
	Loaded       bool   `json:"loaded"`
	Error        string `json:"error,omitempty"`
}

type EditorView struct {
	State  string        `json:"state"`
	RuleID int           `json:"rule_id,omitempty"`
	Draft  *editor.Draft `json:"draft,omitempty"`
}

type StateResponse struct {
	Greenhouses      []models.Greenhouse `json:"greenhouses"`
	ActiveGreenhouse *int                `json:"active_gh_id"`
	GreenhousesError string              `json:"greenhouses_error,omitempty"`
	Load             LoadView            `json:"load"`
	Editor           EditorView          `json:"editor"`
}

// RuleView is a rule with its component ids resolved for display
type RuleView struct {
	Rule     models.Rule `json:"rule"`
	FromName string      `json:"from_name,omitempty"`
	ToName   string      `json:"to_name"`
}

type ComponentsResponse struct {
	Sensors   []models.Component `json:"sensors"`
	Actuators []models.Component `json:"actuators"`
}
