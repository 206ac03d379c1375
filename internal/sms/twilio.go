package sms

import (
	"context"
	"fmt"
	"log"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// messageCreator is the part of the Twilio REST API the gateway uses
type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// TwilioGateway sends SMS through the Twilio Messages API
type TwilioGateway struct {
	api  messageCreator
	from string
}

// NewTwilioGateway creates a gateway for the given account credentials and sender number
func NewTwilioGateway(accountSID, authToken, from string) *TwilioGateway {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &TwilioGateway{api: client.Api, from: from}
}

// Send implements Gateway. The Twilio client has no context support; ctx is only checked before the call.
func (g *TwilioGateway) Send(ctx context.Context, to, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetFrom(g.from)
	params.SetTo(to)
	params.SetBody(body)

	resp, err := g.api.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("twilio: send to %s: %w", MaskPhone(to), err)
	}
	if resp.ErrorCode != nil && *resp.ErrorCode != 0 {
		msg := ""
		if resp.ErrorMessage != nil {
			msg = *resp.ErrorMessage
		}
		return fmt.Errorf("twilio: error %d: %s", *resp.ErrorCode, msg)
	}

	if resp.Sid != nil {
		log.Printf("SMS sent to %s, SID: %s", MaskPhone(to), *resp.Sid)
	}
	return nil
}
