// Package redistransport builds the watermill publisher/subscriber pair the
// streaming pipeline runs on. With Redis disabled it returns a shared
// in-process gochannel pair, which is the default for single-binary use.
package redistransport

import (
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	rstream "github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/prodkit/ideate/pkg/config"
	"github.com/prodkit/ideate/pkg/wmlog"
)

// Build returns a publisher/subscriber pair per the Redis settings.
func Build(cfg config.RedisConfig) (message.Publisher, message.Subscriber, error) {
	logger := wmlog.New(log.With().Str("component", "transport").Logger())

	if !cfg.Enabled {
		ps := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 256}, logger)
		return ps, ps, nil
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.Addr})
	marshaler := rstream.DefaultMarshallerUnmarshaller{}

	pub, err := rstream.NewPublisher(rstream.PublisherConfig{
		Client:     client,
		Marshaller: marshaler,
	}, logger)
	if err != nil {
		return nil, nil, err
	}

	sub, err := rstream.NewSubscriber(rstream.SubscriberConfig{
		Client:        client,
		Unmarshaller:  marshaler,
		ConsumerGroup: cfg.Group,
		Consumer:      cfg.Consumer,
	}, logger)
	if err != nil {
		_ = pub.Close()
		return nil, nil, err
	}

	log.Info().Str("component", "transport").Str("addr", cfg.Addr).Str("group", cfg.Group).Msg("using redis streams transport")
	return pub, sub, nil
}
