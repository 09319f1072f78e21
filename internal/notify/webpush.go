package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	webpush "github.com/SherClockHolmes/webpush-go"
)

// PushSubscription is a browser push endpoint.
type PushSubscription struct {
	Endpoint string `json:"endpoint" yaml:"endpoint"`
	P256dh   string `json:"p256dh" yaml:"p256dh"`
	Auth     string `json:"auth" yaml:"auth"`
}

// VAPIDKeys holds the VAPID key pair for web push.
type VAPIDKeys struct {
	Public  string `yaml:"public"`
	Private string `yaml:"private"`
	// Subscriber is the contact (mailto: or https URL) sent to push services.
	Subscriber string `yaml:"subscriber"`
}

// WebPushSink forwards notifications of selected kinds to browser push
// subscriptions. Expired subscriptions (410 Gone) are dropped.
type WebPushSink struct {
	keys  VAPIDKeys
	kinds map[Kind]bool
	send  func(payload []byte, sub *webpush.Subscription, opts *webpush.Options) (*http.Response, error)

	mu   sync.Mutex
	subs []PushSubscription
	wg   sync.WaitGroup
}

// NewWebPushSink returns a sink pushing the given kinds (all when empty).
func NewWebPushSink(keys VAPIDKeys, subs []PushSubscription, kinds ...Kind) *WebPushSink {
	w := &WebPushSink{keys: keys, subs: append([]PushSubscription(nil), subs...), send: webpush.SendNotification}
	if len(kinds) != 0 {
		w.kinds = map[Kind]bool{}
		for _, k := range kinds {
			w.kinds[k] = true
		}
	}
	return w
}

// Subscriptions returns the live subscriptions.
func (w *WebPushSink) Subscriptions() []PushSubscription {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]PushSubscription(nil), w.subs...)
}

// Send pushes e asynchronously.
func (w *WebPushSink) Send(e Event) {
	if w.kinds != nil && !w.kinds[e.Kind] {
		return
	}
	payload, err := json.Marshal(e)
	if err != nil {
		slog.Error("Failed to encode push payload", "err", err, "kind", e.Kind)
		return
	}
	subs := w.Subscriptions()
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		ctx := context.Background()
		for _, sub := range subs {
			resp, err := w.send(payload, &webpush.Subscription{
				Endpoint: sub.Endpoint,
				Keys:     webpush.Keys{P256dh: sub.P256dh, Auth: sub.Auth},
			}, &webpush.Options{
				VAPIDPublicKey:  w.keys.Public,
				VAPIDPrivateKey: w.keys.Private,
				Subscriber:      w.keys.Subscriber,
				TTL:             60,
			})
			if err != nil {
				slog.ErrorContext(ctx, "Web push send failed", "err", err, "endpoint", sub.Endpoint)
				continue
			}
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusGone {
				w.remove(sub.Endpoint)
				slog.InfoContext(ctx, "Dropped expired push subscription", "endpoint", sub.Endpoint)
			}
		}
	}()
}

// Wait blocks until in-flight pushes complete.
func (w *WebPushSink) Wait() {
	w.wg.Wait()
}

func (w *WebPushSink) remove(endpoint string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i, s := range w.subs {
		if s.Endpoint == endpoint {
			w.subs = append(w.subs[:i], w.subs[i+1:]...)
			return
		}
	}
}
