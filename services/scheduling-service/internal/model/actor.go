package model

import "strings"

type ActorKind string

const (
	ActorDoctor  ActorKind = "doctor"
	ActorPatient ActorKind = "patient"
	ActorAdmin   ActorKind = "admin"
)

// Actor is whoever initiates an operation or receives a notification.
type Actor struct {
	Kind ActorKind
	ID   string
}

func ParseActorKind(s string) (ActorKind, bool) {
	switch k := ActorKind(strings.ToLower(strings.TrimSpace(s))); k {
	case ActorDoctor, ActorPatient, ActorAdmin:
		return k, true
	default:
		return "", false
	}
}

func (a Actor) IsZero() bool { return a.Kind == "" }

func (a Actor) String() string { return string(a.Kind) + ":" + a.ID }
