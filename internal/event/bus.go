// Package event はプロセス内の通知バスを提供する。
// ゲートウェイが発行し、セッションストアなどが購読する。
package event

import "sync"

// Topic は通知の種類。ペイロードは持たない。
type Topic string

const (
	// SessionExpired はバックエンドが401を返したことを示す。
	SessionExpired Topic = "session-expired"
)

// Handler は通知を受け取る関数。
type Handler func(Topic)

type subscription struct {
	id      uint64
	topic   Topic
	handler Handler
}

// Bus はトピック単位の同期通知バス。
// Publishは購読者を登録順に同期的に呼び出すため、
// Publishから戻った時点で全購読者の処理は完了している。
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   []subscription
}

// NewBus は空のBusを生成する。
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe は購読を登録し、解除用の関数を返す。
// 解除関数は複数回呼んでも安全。
func (b *Bus) Subscribe(topic Topic, h Handler) (unsubscribe func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, topic: topic, handler: h})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			for i, s := range b.subs {
				if s.id == id {
					b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Publish はトピックの購読者全員に通知する。
// 購読者のハンドラ内からSubscribe/Publishを呼んでもデッドロックしない。
func (b *Bus) Publish(topic Topic) {
	b.mu.RLock()
	targets := make([]Handler, 0, len(b.subs))
	for _, s := range b.subs {
		if s.topic == topic {
			targets = append(targets, s.handler)
		}
	}
	b.mu.RUnlock()

	for _, h := range targets {
		h(topic)
	}
}

// subscriberCount は指定トピックの購読者数を返す。
func (b *Bus) subscriberCount(topic Topic) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n := 0
	for _, s := range b.subs {
		if s.topic == topic {
			n++
		}
	}
	return n
}
