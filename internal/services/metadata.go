package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/kestrelworks/orgvault/internal/evcs"
	"github.com/kestrelworks/orgvault/internal/requestdata"
)

// metaFromContext stamps a mutation with the authenticated caller. Anonymous
// calls (seeding, registration) get a nil actor.
func metaFromContext(ctx context.Context, description string) evcs.Metadata {
	meta := evcs.Metadata{Description: description}
	if rd := requestdata.GetRequestData(ctx); rd != nil && rd.UserID != uuid.Nil {
		actorID := rd.UserID
		meta.ActorID = &actorID
	}
	return meta
}
