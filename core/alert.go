package core

import "time"

// AlertActionGroup is an action group an alert type can schedule actions for
type AlertActionGroup struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// AlertType describes an alert type registered with the alerting service
type AlertType struct {
	ID           string             `json:"id"`
	Name         string             `json:"name"`
	ActionGroups []AlertActionGroup `json:"actionGroups,omitempty"`
}

// AlertAction is an action scheduled when an alert fires
type AlertAction struct {
	Group  string                 `json:"group"`
	ID     string                 `json:"id"`
	Params map[string]interface{} `json:"params"`
}

// Alert is an alert resource as returned by the alerting service
type Alert struct {
	ID               string                 `json:"id"`
	Enabled          bool                   `json:"enabled"`
	Name             string                 `json:"name"`
	Tags             []string               `json:"tags"`
	AlertTypeID      string                 `json:"alertTypeId"`
	Interval         string                 `json:"interval,omitempty"`
	Actions          []AlertAction          `json:"actions"`
	Params           map[string]interface{} `json:"params"`
	CreatedBy        string                 `json:"createdBy,omitempty"`
	UpdatedBy        string                 `json:"updatedBy,omitempty"`
	CreatedAt        *time.Time             `json:"createdAt,omitempty"`
	UpdatedAt        *time.Time             `json:"updatedAt,omitempty"`
	APIKeyOwner      string                 `json:"apiKeyOwner,omitempty"`
	Throttle         *string                `json:"throttle"`
	MuteAll          bool                   `json:"muteAll"`
	MutedInstanceIDs []string               `json:"mutedInstanceIds"`
}

// AlertCreate is the body of an alert creation request. Ownership and mute
// state are assigned by the service.
type AlertCreate struct {
	Enabled     bool                   `json:"enabled"`
	Name        string                 `json:"name"`
	Tags        []string               `json:"tags"`
	AlertTypeID string                 `json:"alertTypeId"`
	Interval    string                 `json:"interval"`
	Actions     []AlertAction          `json:"actions"`
	Params      map[string]interface{} `json:"params"`
	Throttle    *string                `json:"throttle"`
}

// AlertUpdate is the body of an alert update request
type AlertUpdate struct {
	Throttle *string                `json:"throttle"`
	Name     string                 `json:"name"`
	Tags     []string               `json:"tags"`
	Interval string                 `json:"interval"`
	Params   map[string]interface{} `json:"params"`
	Actions  []AlertAction          `json:"actions"`
}

// AlertPage is one page of a find request
type AlertPage struct {
	Page    int     `json:"page"`
	PerPage int     `json:"perPage"`
	Total   int     `json:"total"`
	Data    []Alert `json:"data"`
}
