package pinpoint

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/pinpoint"
	"github.com/aws/aws-sdk-go-v2/service/pinpoint/types"
)

// pinpointAPI is the minimal Pinpoint interface required by Client.
// *pinpoint.Client from aws-sdk-go-v2 satisfies this interface.
type pinpointAPI interface {
	SendMessages(ctx context.Context, in *pinpoint.SendMessagesInput, optFns ...func(*pinpoint.Options)) (*pinpoint.SendMessagesOutput, error)
}

// Sender is the outbound SMS contract consumed by the services: deliver body
// to destination and return the transport-issued message id.
type Sender interface {
	Send(ctx context.Context, destination, body string) (string, error)
}

// Client sends transactional SMS through an Amazon Pinpoint application.
type Client struct {
	api   pinpointAPI
	appID string
}

// New creates a Client for the given Pinpoint application.
func New(api pinpointAPI, appID string) (*Client, error) {
	if api == nil {
		return nil, errors.New("pinpoint: api must not be nil")
	}
	if strings.TrimSpace(appID) == "" {
		return nil, errors.New("pinpoint: application id must not be empty")
	}
	return &Client{api: api, appID: appID}, nil
}

// Send delivers one SMS and returns the message id Pinpoint issued for it.
func (c *Client) Send(ctx context.Context, destination, body string) (string, error) {
	destination = strings.TrimSpace(destination)
	if destination == "" {
		return "", errors.New("pinpoint: destination is required")
	}
	if body == "" {
		return "", errors.New("pinpoint: body is required")
	}

	out, err := c.api.SendMessages(ctx, &pinpoint.SendMessagesInput{
		ApplicationId: aws.String(c.appID),
		MessageRequest: &types.MessageRequest{
			Addresses: map[string]types.AddressConfiguration{
				destination: {ChannelType: types.ChannelTypeSms},
			},
			MessageConfiguration: &types.DirectMessageConfiguration{
				SMSMessage: &types.SMSMessage{
					Body:        aws.String(body),
					MessageType: types.MessageTypeTransactional,
				},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("pinpoint: send to %s: %w", destination, err)
	}
	if out == nil || out.MessageResponse == nil {
		return "", errors.New("pinpoint: empty message response")
	}

	result, ok := out.MessageResponse.Result[destination]
	if !ok {
		return "", fmt.Errorf("pinpoint: no result for destination %s", destination)
	}
	if result.DeliveryStatus != types.DeliveryStatusSuccessful {
		return "", fmt.Errorf("pinpoint: delivery status %s for %s: %s",
			result.DeliveryStatus, destination, aws.ToString(result.StatusMessage))
	}
	if aws.ToString(result.MessageId) == "" {
		return "", fmt.Errorf("pinpoint: missing message id for %s", destination)
	}
	return *result.MessageId, nil
}
