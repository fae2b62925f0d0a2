package model

type ScheduleState string

const (
	ScheduleEnabled  ScheduleState = "ENABLED"
	ScheduleDisabled ScheduleState = "DISABLED"
)

type RetryPolicy struct {
	MaximumRetryAttempts     int `json:"MaximumRetryAttempts"`
	MaximumEventAgeInSeconds int `json:"MaximumEventAgeInSeconds"`
}

// ScheduleTarget is what the scheduler invokes when the schedule fires.
type ScheduleTarget struct {
	Arn         string      `json:"Arn"`
	RoleArn     string      `json:"RoleArn,omitempty"`
	Input       string      `json:"Input,omitempty"`
	RetryPolicy RetryPolicy `json:"RetryPolicy"`
}

// Schedule is the external scheduler resource mirroring one posting rule.
type Schedule struct {
	Name               string         `json:"Name"`
	ScheduleExpression string         `json:"ScheduleExpression"`
	Timezone           string         `json:"ScheduleExpressionTimezone"`
	State              ScheduleState  `json:"State"`
	Target             ScheduleTarget `json:"Target"`
}

func (s *Schedule) Enabled() bool { return s.State == ScheduleEnabled }

// SchedulerEvent is the payload delivered to the posting target.
type SchedulerEvent struct {
	PostingRuleID string `json:"PostingRuleId"`
}

// Route is an HTTP route registered in the external API gateway.
type Route struct {
	ID     string `json:"RouteId"`
	Key    string `json:"RouteKey"`
	Target string `json:"Target"`
}
