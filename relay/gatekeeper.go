package relay

import (
	"errors"
	"net/url"
	"strconv"

	"github.com/google/uuid"
)

var (
	ErrMissingIdentity   = errors.New("user_id query parameter is required")
	ErrMalformedIdentity = errors.New("user_id is not a valid identifier")
	ErrMalformedRef      = errors.New("reference is not a valid identifier")
)

// Params is the validated bundle of connection parameters. Validation is pure:
// nothing is looked up in storage, so a malformed or adversarial connection is
// rejected before any resource is allocated.
type Params struct {
	UserID       uuid.UUID
	ScenarioID   *uuid.UUID
	AssignmentID *uuid.UUID
	Record       bool
}

func ParseParams(query url.Values) (Params, error) {
	rawUser := query.Get("user_id")
	if rawUser == "" {
		return Params{}, ErrMissingIdentity
	}
	userID, err := uuid.Parse(rawUser)
	if err != nil {
		return Params{}, ErrMalformedIdentity
	}

	params := Params{UserID: userID}

	if raw := query.Get("scenario_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return Params{}, ErrMalformedRef
		}
		params.ScenarioID = &id
	}

	if raw := query.Get("assignment_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return Params{}, ErrMalformedRef
		}
		params.AssignmentID = &id
	}

	if raw := query.Get("record"); raw != "" {
		record, err := strconv.ParseBool(raw)
		if err != nil {
			return Params{}, errors.New("record must be a boolean")
		}
		params.Record = record
	}

	return params, nil
}
