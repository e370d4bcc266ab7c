package service

import (
	"context"

	"github.com/tnqbao/gau-ads-orchestrator/entity"
	"github.com/tnqbao/gau-ads-orchestrator/infra/produce"
	"github.com/tnqbao/gau-ads-orchestrator/utils"
)

type CreativePublisher interface {
	PublishThumbnail(ctx context.Context, msg produce.ThumbnailMessage) error
	PublishMirror(ctx context.Context, msg produce.MirrorMessage) error
}

// CreativeEvents forwards library changes to the mirror and thumbnail workers.
type CreativeEvents struct {
	publisher CreativePublisher
}

func NewCreativeEvents(publisher CreativePublisher) *CreativeEvents {
	return &CreativeEvents{publisher: publisher}
}

func (e *CreativeEvents) CreativeCreated(ctx context.Context, c *entity.Creative) error {
	if err := e.publisher.PublishMirror(ctx, mirrorMessage(c, false)); err != nil {
		return err
	}
	if !c.IsVideo() {
		return nil
	}
	return e.publisher.PublishThumbnail(ctx, produce.ThumbnailMessage{
		CreativeID:        c.ID.String(),
		CanonicalFilePath: c.CanonicalFilePath,
	})
}

func (e *CreativeEvents) CreativeDeleted(ctx context.Context, c *entity.Creative) error {
	return e.publisher.PublishMirror(ctx, mirrorMessage(c, true))
}

func mirrorMessage(c *entity.Creative, remove bool) produce.MirrorMessage {
	return produce.MirrorMessage{
		CreativeID:        c.ID.String(),
		Fingerprint:       c.Fingerprint,
		ObjectKey:         utils.CanonicalName(c.Fingerprint, c.OriginalName),
		CanonicalFilePath: c.CanonicalFilePath,
		ContentType:       c.ContentType,
		Remove:            remove,
	}
}
