// Package gochannel provides the in-process transport used when the API and the flow worker share a process.
package gochannel

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

const outputBuffer = 1000

// CreateChannel returns one GoChannel acting as both publisher and subscriber. Without persistent,
// messages published before the first Subscribe are dropped.
func CreateChannel(logger watermill.LoggerAdapter, persistent bool) (*gochannel.GoChannel, *gochannel.GoChannel, error) {
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer: outputBuffer,
			Persistent:          persistent,
		},
		logger,
	)

	return pubSub, pubSub, nil
}
