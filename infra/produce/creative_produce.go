package produce

import (
	"context"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	CreativeExchange = "creative.exchange"

	ThumbnailQueue      = "creative.thumbnail"
	ThumbnailRoutingKey = "creative.thumbnail"

	MirrorQueue      = "creative.mirror"
	MirrorRoutingKey = "creative.mirror"
)

// ThumbnailMessage asks the worker to generate a thumbnail for a video creative.
type ThumbnailMessage struct {
	CreativeID        string `json:"creative_id"`
	CanonicalFilePath string `json:"canonical_file_path"`
	Timestamp         int64  `json:"timestamp"`
}

// MirrorMessage asks the worker to copy a canonical library file into object storage.
type MirrorMessage struct {
	CreativeID        string `json:"creative_id"`
	Fingerprint       string `json:"fingerprint"`
	ObjectKey         string `json:"object_key"` // hash.ext format
	CanonicalFilePath string `json:"canonical_file_path"`
	ContentType       string `json:"content_type"`
	Remove            bool   `json:"remove,omitempty"`
	Timestamp         int64  `json:"timestamp"`
}

type CreativeProduceService struct {
	publisher Publisher
}

func InitCreativeProduceService(channel *amqp.Channel) *CreativeProduceService {
	declareExchange(channel, CreativeExchange)
	declareBoundQueue(channel, CreativeExchange, ThumbnailQueue, ThumbnailRoutingKey, nil)
	declareBoundQueue(channel, CreativeExchange, MirrorQueue, MirrorRoutingKey, nil)

	return &CreativeProduceService{publisher: channel}
}

func NewCreativeProduceService(publisher Publisher) *CreativeProduceService {
	return &CreativeProduceService{publisher: publisher}
}

func (s *CreativeProduceService) PublishThumbnail(ctx context.Context, msg ThumbnailMessage) error {
	msg.Timestamp = time.Now().Unix()
	return publishJSON(ctx, s.publisher, CreativeExchange, ThumbnailRoutingKey, msg, "")
}

func (s *CreativeProduceService) PublishMirror(ctx context.Context, msg MirrorMessage) error {
	msg.Timestamp = time.Now().Unix()
	return publishJSON(ctx, s.publisher, CreativeExchange, MirrorRoutingKey, msg, "")
}
