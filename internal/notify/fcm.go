package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2/google"
	fcm "google.golang.org/api/fcm/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const firebaseMessagingScope = "https://www.googleapis.com/auth/firebase.messaging"

// ErrTokenUnregistered means FCM no longer knows the device token.
var ErrTokenUnregistered = errors.New("fcm token unregistered")

// FCMPusher sends through the Firebase Cloud Messaging HTTP v1 API.
type FCMPusher struct {
	svc       *fcm.Service
	projectID string
}

// NewFCM builds a pusher from a service-account JSON key. projectID may be empty,
// in which case the key's project_id is used.
func NewFCM(ctx context.Context, serviceAccountJSON, projectID string) (*FCMPusher, error) {
	creds, err := google.CredentialsFromJSON(ctx, []byte(serviceAccountJSON), firebaseMessagingScope)
	if err != nil {
		return nil, fmt.Errorf("parse firebase credentials: %w", err)
	}
	if projectID == "" {
		projectID = creds.ProjectID
	}
	if projectID == "" {
		var key struct {
			ProjectID string `json:"project_id"`
		}
		_ = json.Unmarshal([]byte(serviceAccountJSON), &key)
		projectID = key.ProjectID
	}
	if projectID == "" {
		return nil, errors.New("firebase project id is unknown")
	}

	svc, err := fcm.NewService(ctx, option.WithTokenSource(creds.TokenSource))
	if err != nil {
		return nil, fmt.Errorf("create fcm service: %w", err)
	}
	return &FCMPusher{svc: svc, projectID: projectID}, nil
}

func (p *FCMPusher) Push(ctx context.Context, token string, n Notification) error {
	req := &fcm.SendMessageRequest{Message: buildFCMMessage(token, n)}
	_, err := p.svc.Projects.Messages.Send("projects/"+p.projectID, req).Context(ctx).Do()
	if err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && gerr.Code == http.StatusNotFound {
			return fmt.Errorf("%w: %s", ErrTokenUnregistered, Redact(token))
		}
		return fmt.Errorf("fcm send: %w", err)
	}
	return nil
}

func buildFCMMessage(token string, n Notification) *fcm.Message {
	msg := &fcm.Message{
		Token: token,
		Notification: &fcm.Notification{
			Title: n.Title,
			Body:  n.Body,
		},
		Android: &fcm.AndroidConfig{Priority: "HIGH"},
	}
	if len(n.Data) > 0 {
		msg.Data = make(map[string]string, len(n.Data))
		for k, v := range n.Data {
			msg.Data[k] = v
		}
	}
	return msg
}
