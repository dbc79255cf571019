package mqttline

import (
	"net/url"
	"strings"
	"sync"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/golang/glog"
)

// Handler is the callback when a message is received.
type Handler func(topic string, payload []byte)

// Queue wraps an MQTT client. Topics passed to Sub, Subscribe and Publish
// are relative to TopicPrefix.
type Queue struct {
	Client      paho.Client
	TopicPrefix string

	subsLock sync.RWMutex
	subs     map[string][]*Subscription
}

// Subscription is one handler registered on a topic filter.
type Subscription struct {
	// Token is set when the filter was first subscribed on the broker.
	Token paho.Token

	queue   *Queue
	filter  string
	handler Handler
}

// MatchTopic matches topic with pattern.
func MatchTopic(topic, pattern string) bool {
	tokensT, tokensP := strings.Split(topic, "/"), strings.Split(pattern, "/")
	if len(tokensP) > len(tokensT) {
		return false
	}
	for i, token := range tokensP {
		if token == "+" {
			continue
		}
		if token == "#" && i+1 == len(tokensP) {
			return true
		}
		if token != tokensT[i] {
			return false
		}
	}
	return len(tokensP) == len(tokensT)
}

// ClientOptionsFromURL creates ClientOptions from URL of the form
// mqtt://[user:pass@]host:port/topic-prefix/?client-id=ID.
func ClientOptionsFromURL(serverURL string) (*paho.ClientOptions, string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, "", err
	}
	server := u.Scheme
	if server == "" || server == "mqtt" {
		server = "tcp"
	}
	server += "://" + u.Host

	topicPrefix := strings.TrimPrefix(u.Path, "/")

	opts := paho.NewClientOptions()
	opts.AddBroker(server).
		SetAutoReconnect(true).
		SetCleanSession(true)
	if u.User != nil {
		opts.SetUsername(u.User.Username())
		if pwd, ok := u.User.Password(); ok {
			opts.SetPassword(pwd)
		}
	}
	if clientID := u.Query().Get("client-id"); clientID != "" {
		opts.SetClientID(clientID)
	}
	return opts, topicPrefix, nil
}

// NewQueue creates Queue.
func NewQueue(options *paho.ClientOptions, topicPrefix string) *Queue {
	q := &Queue{TopicPrefix: topicPrefix}
	options.SetOnConnectHandler(q.onConnect)
	options.SetConnectionLostHandler(q.onConnectionLost)
	q.Client = paho.NewClient(options)
	return q
}

// Connect connects the client.
func (q *Queue) Connect() paho.Token {
	return q.Client.Connect()
}

// Close implements io.Closer.
func (q *Queue) Close() error {
	q.Client.Disconnect(0)
	return nil
}

// Sub subscribes a topic.
func (q *Queue) Sub(topic string, handler Handler) *Subscription {
	sub, newSub := q.addSub(topic, handler)
	if newSub {
		glog.V(2).Infof("SUB %q", q.TopicPrefix+topic)
		sub.Token = q.Client.Subscribe(q.TopicPrefix+topic, 0, q.onMessage)
	}
	return sub
}

// Subscribe implements Transport.
func (q *Queue) Subscribe(topic string, handler Handler) error {
	sub := q.Sub(topic, handler)
	if sub.Token == nil {
		return nil
	}
	sub.Token.Wait()
	return sub.Token.Error()
}

// Publish implements Transport. It waits until the client has sent the message.
func (q *Queue) Publish(topic string, payload []byte, retain bool) error {
	token := q.Client.Publish(q.TopicPrefix+topic, 0, retain, payload)
	token.Wait()
	return token.Error()
}

func (q *Queue) addSub(filter string, handler Handler) (*Subscription, bool) {
	q.subsLock.Lock()
	defer q.subsLock.Unlock()
	if q.subs == nil {
		q.subs = make(map[string][]*Subscription)
	}
	sub := &Subscription{queue: q, filter: filter, handler: handler}
	existing := q.subs[filter]
	q.subs[filter] = append(existing, sub)
	return sub, len(existing) == 0
}

func (q *Queue) resubscribe() {
	q.subsLock.RLock()
	filters := make(map[string]byte, len(q.subs))
	for filter := range q.subs {
		filters[q.TopicPrefix+filter] = 0
	}
	q.subsLock.RUnlock()
	if len(filters) > 0 {
		q.Client.SubscribeMultiple(filters, q.onMessage)
	}
}

func (q *Queue) onConnect(paho.Client) {
	glog.Info("MQTT connected")
	q.resubscribe()
}

func (q *Queue) onConnectionLost(_ paho.Client, err error) {
	glog.Warningf("MQTT connection lost: %v", err)
}

func (q *Queue) onMessage(_ paho.Client, msg paho.Message) {
	q.dispatch(msg.Topic(), msg.Payload())
}

// dispatch runs the handlers of every filter matching the absolute topic.
func (q *Queue) dispatch(topic string, payload []byte) {
	rel := strings.TrimPrefix(topic, q.TopicPrefix)
	if len(rel) == len(topic) && q.TopicPrefix != "" {
		return
	}
	glog.V(4).Infof("RCV %q", topic)
	var handlers []Handler
	q.subsLock.RLock()
	for filter, subs := range q.subs {
		if filter != rel && !MatchTopic(rel, filter) {
			continue
		}
		for _, sub := range subs {
			handlers = append(handlers, sub.handler)
		}
	}
	q.subsLock.RUnlock()
	for _, h := range handlers {
		h(rel, payload)
	}
}

// Close removes the handler, and unsubscribes the filter on the broker when
// it was the last one.
func (s *Subscription) Close() error {
	q := s.queue
	q.subsLock.Lock()
	subs := q.subs[s.filter]
	for n, sub := range subs {
		if sub == s {
			subs = append(subs[:n:n], subs[n+1:]...)
			break
		}
	}
	last := len(subs) == 0
	if last {
		delete(q.subs, s.filter)
	} else {
		q.subs[s.filter] = subs
	}
	q.subsLock.Unlock()
	if !last || q.Client == nil {
		return nil
	}
	glog.V(2).Infof("UNSUB %q", q.TopicPrefix+s.filter)
	token := q.Client.Unsubscribe(q.TopicPrefix + s.filter)
	token.Wait()
	return token.Error()
}
