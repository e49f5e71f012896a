package http

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Request bodies. Enum values, score ranges and term codes are checked again
// by the domain; the tags here reject obviously malformed input early.

type createStudentRequest struct {
	Name   string `json:"name" validate:"required,max=100"`
	Number string `json:"number" validate:"required,max=32"`
	Term   string `json:"term" validate:"required,len=4,numeric"`
	Status string `json:"status" validate:"omitempty,max=32"`
}

type updateStudentRequest struct {
	Name   *string `json:"name" validate:"omitempty,min=1,max=100"`
	Number *string `json:"number" validate:"omitempty,min=1,max=32"`
	Term   *string `json:"term" validate:"omitempty,len=4,numeric"`
}

type setStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type recordScoreRequest struct {
	StudentID string     `json:"student_id" validate:"required"`
	Slot      string     `json:"slot" validate:"required"`
	Value     scoreValue `json:"value"`
}

type updateScoreRequest struct {
	Slot  string     `json:"slot" validate:"required"`
	Value scoreValue `json:"value"`
}

type createExamRequest struct {
	Name  string `json:"name" validate:"required,max=100"`
	Term  string `json:"term" validate:"required,len=4,numeric"`
	Date  string `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Range string `json:"range" validate:"omitempty,max=500"`
	State string `json:"state" validate:"omitempty,max=32"`
}

type updateExamRequest struct {
	Name  *string `json:"name" validate:"omitempty,min=1,max=100"`
	Term  *string `json:"term" validate:"omitempty,len=4,numeric"`
	Date  *string `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Range *string `json:"range" validate:"omitempty,max=500"`
}

type setExamStateRequest struct {
	State string `json:"state" validate:"required"`
}

type setWeightsRequest struct {
	Weights map[string]float64 `json:"weights" validate:"required,min=1,dive,keys,required,endkeys,gte=0,lte=1"`
}

type finalizeTermRequest struct {
	PassingThreshold *float64 `json:"passing_threshold" validate:"required,gte=0,lte=100"`
}

// scoreValue accepts a score as a JSON string, number or null. Null and ""
// both clear the slot.
type scoreValue string

// UnmarshalJSON implements json.Unmarshaler.
func (v *scoreValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*v = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = scoreValue(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	if _, err := strconv.ParseFloat(n.String(), 64); err != nil {
		return err
	}
	*v = scoreValue(n.String())
	return nil
}
