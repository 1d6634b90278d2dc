// Package pubsub publishes new tender batches to a Google Cloud Pub/Sub topic.
package pubsub

import (
	"context"
	"fmt"
	"strconv"

	"cloud.google.com/go/pubsub"

	"github.com/JakeFAU/tenderwatch/internal/tender"
)

// Notifier publishes the JSON batch as a single message.
type Notifier struct {
	client *pubsub.Client
	topic  *pubsub.Topic
}

// Dial connects with Application Default Credentials and checks that the topic exists.
func Dial(ctx context.Context, projectID, topicID string) (*Notifier, error) {
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	topic := client.Topic(topicID)
	exists, err := topic.Exists(ctx)
	if err != nil {
		_ = client.Close() //nolint:errcheck // primary error wins
		return nil, fmt.Errorf("check pubsub topic %q: %w", topicID, err)
	}
	if !exists {
		_ = client.Close() //nolint:errcheck // primary error wins
		return nil, fmt.Errorf("pubsub topic %q does not exist in project %q", topicID, projectID)
	}
	return &Notifier{client: client, topic: topic}, nil
}

// New wraps an existing topic handle. The caller keeps ownership of its client.
func New(topic *pubsub.Topic) *Notifier {
	return &Notifier{topic: topic}
}

// Name identifies the notifier in logs.
func (n *Notifier) Name() string {
	return "pubsub"
}

// Notify publishes the batch and waits for the server acknowledgement.
func (n *Notifier) Notify(ctx context.Context, note tender.Notification) error {
	if n.topic == nil {
		return fmt.Errorf("pubsub topic is not configured")
	}
	msg := &pubsub.Message{
		Data: note.Body,
		Attributes: map[string]string{
			"run_id":   note.RunID,
			"records":  strconv.Itoa(note.Records),
			"artifact": note.ArtifactName,
		},
	}
	if _, err := n.topic.Publish(ctx, msg).Get(ctx); err != nil {
		return fmt.Errorf("publish message: %w", err)
	}
	return nil
}

// Close flushes pending messages and closes the client when Dial created it.
func (n *Notifier) Close() error {
	if n.topic != nil {
		n.topic.Stop()
	}
	if n.client == nil {
		return nil
	}
	if err := n.client.Close(); err != nil {
		return fmt.Errorf("close pubsub client: %w", err)
	}
	return nil
}
