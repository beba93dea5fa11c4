package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
)

// Client wraps the chat service's web API and its streaming endpoint. The
// apiToken is used for workspace calls, the botToken for the event stream
// and messages sent as the bot user.
type Client struct {
	BaseURL  string
	APIToken string
	BotToken string

	HTTP   *http.Client
	Dialer *websocket.Dialer
}

func NewClient(baseURL, apiToken, botToken string) *Client {
	return &Client{
		BaseURL:  strings.TrimSuffix(baseURL, "/"),
		APIToken: apiToken,
		BotToken: botToken,
		HTTP:     &http.Client{},
		Dialer:   websocket.DefaultDialer,
	}
}

// Stream yields events from one live connection. A non-nil error from Next
// means the connection is no longer usable.
type Stream interface {
	Next() (Event, error)
	Close() error
}

type apiError struct {
	method string
	reason string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("chat: %s failed: %s", e.method, e.reason)
}

func (c *Client) call(method, token string, params url.Values, out interface{}) error {
	req, err := http.NewRequest(http.MethodPost, c.BaseURL+"/"+method,
		strings.NewReader(params.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+token)

	response, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return &apiError{method: method, reason: response.Status}
	}
	return json.NewDecoder(response.Body).Decode(out)
}

// ConnectEventStream asks the service for a streaming URL and dials it.
func (c *Client) ConnectEventStream(ctx context.Context) (Stream, error) {
	var connect struct {
		OK    bool   `json:"ok"`
		URL   string `json:"url"`
		Error string `json:"error"`
	}
	if err := c.call("rtm.connect", c.BotToken, url.Values{}, &connect); err != nil {
		return nil, err
	}
	if !connect.OK {
		return nil, &apiError{method: "rtm.connect", reason: connect.Error}
	}

	conn, _, err := c.Dialer.DialContext(ctx, connect.URL, nil)
	if err != nil {
		return nil, err
	}
	return &wsStream{conn: conn}, nil
}

type wsStream struct {
	conn *websocket.Conn
}

func (s *wsStream) Next() (Event, error) {
	_, frame, err := s.conn.ReadMessage()
	if err != nil {
		return Event{}, err
	}

	var event Event
	if err := json.Unmarshal(frame, &event); err != nil {
		return Event{}, fmt.Errorf("decode event frame: %w", err)
	}
	return event, nil
}

func (s *wsStream) Close() error {
	return s.conn.Close()
}

// PostReply posts text into a thread.
func (c *Client) PostReply(channel, text, threadRef string) error {
	params := url.Values{}
	params.Set("channel", channel)
	params.Set("text", text)
	params.Set("thread_ts", threadRef)

	var posted struct {
		OK    bool   `json:"ok"`
		Error string `json:"error"`
	}
	if err := c.call("chat.postMessage", c.APIToken, params, &posted); err != nil {
		return err
	}
	if !posted.OK {
		return &apiError{method: "chat.postMessage", reason: posted.Error}
	}
	return nil
}

// PostDirectMessage sends text to a user as the bot user.
func (c *Client) PostDirectMessage(chatUserID, text string) error {
	params := url.Values{}
	params.Set("channel", chatUserID)
	params.Set("text", text)
	params.Set("as_user", "true")

	var posted struct {
		OK    bool   `json:"ok"`
		Error string `json:"error"`
	}
	if err := c.call("chat.postMessage", c.BotToken, params, &posted); err != nil {
		return err
	}
	if !posted.OK {
		return &apiError{method: "chat.postMessage", reason: posted.Error}
	}
	return nil
}

// FetchRootMessage returns the root message of a thread.
func (c *Client) FetchRootMessage(channel, threadRef string) (Message, error) {
	params := url.Values{}
	params.Set("channel", channel)
	params.Set("ts", threadRef)

	var replies struct {
		OK       bool      `json:"ok"`
		Error    string    `json:"error"`
		Messages []Message `json:"messages"`
	}
	if err := c.call("conversations.replies", c.APIToken, params, &replies); err != nil {
		return Message{}, err
	}
	if !replies.OK || len(replies.Messages) == 0 {
		return Message{}, &apiError{method: "conversations.replies", reason: replies.Error}
	}
	return replies.Messages[0], nil
}

// ResolveUserEmail maps a chat-side user id to the email on their profile.
func (c *Client) ResolveUserEmail(chatUserID string) (string, error) {
	params := url.Values{}
	params.Set("user", chatUserID)

	var info struct {
		OK    bool   `json:"ok"`
		Error string `json:"error"`
		User  struct {
			Profile struct {
				Email string `json:"email"`
			} `json:"profile"`
		} `json:"user"`
	}
	if err := c.call("users.info", c.APIToken, params, &info); err != nil {
		return "", err
	}
	if !info.OK {
		return "", &apiError{method: "users.info", reason: info.Error}
	}
	if info.User.Profile.Email == "" {
		// usually a missing users:read.email scope on the token
		return "", &apiError{method: "users.info", reason: "no email on profile"}
	}
	return info.User.Profile.Email, nil
}

// ResolveUserID maps an email back to a chat-side user id.
func (c *Client) ResolveUserID(email string) (string, error) {
	params := url.Values{}
	params.Set("email", email)

	var lookup struct {
		OK    bool   `json:"ok"`
		Error string `json:"error"`
		User  struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	if err := c.call("users.lookupByEmail", c.BotToken, params, &lookup); err != nil {
		return "", err
	}
	if !lookup.OK {
		return "", &apiError{method: "users.lookupByEmail", reason: lookup.Error}
	}
	return lookup.User.ID, nil
}
