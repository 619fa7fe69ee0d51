// Package notify delivers automation notifications to chat and logging
// channels.
package notify

import (
	"context"
	"fmt"
	"io"
	"log"
	"sort"
	"strings"
	"sync"
)

// Built-in channel names. Email and SMS have no transport yet and are
// routed to the default channel.
const (
	ChannelLog     = "log"
	ChannelSlack   = "slack"
	ChannelDiscord = "discord"
	ChannelEmail   = "email"
	ChannelSMS     = "sms"
)

// Message is a notification produced by a workflow.
type Message struct {
	Channel  string  // requested channel; empty uses the default
	Subject  string  // headline
	Text     string  // body text
	Severity string  // "info", "warning", "error", "success"
	Fields   []Field // key-value metadata pairs
}

// Field is a key-value pair displayed with a notification.
type Field struct {
	Name  string
	Value string
	Short bool // hint: render side-by-side with another field
}

// Channel is a notification transport.
type Channel interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}

// Color returns a sidebar color hint for a severity.
func Color(severity string) string {
	switch severity {
	case "success":
		return "#36a64f"
	case "warning":
		return "#daa038"
	case "error":
		return "#d00000"
	default:
		return "#439fe0"
	}
}

// ContextFields renders an event context as sorted fields.
func ContextFields(ctx map[string]any) []Field {
	keys := make([]string, 0, len(ctx))
	for k := range ctx {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fields := make([]Field, 0, len(keys))
	for _, k := range keys {
		fields = append(fields, Field{Name: k, Value: fmt.Sprint(ctx[k]), Short: true})
	}
	return fields
}

// Dispatcher routes messages to channels by name.
type Dispatcher struct {
	mu          sync.RWMutex
	channels    map[string]Channel
	defaultName string
}

// NewDispatcher creates a Dispatcher. The log channel is always
// registered; defaultName falls back to it when not registered.
func NewDispatcher(defaultName string, out io.Writer, channels ...Channel) *Dispatcher {
	d := &Dispatcher{channels: make(map[string]Channel)}
	d.Register(NewLogChannel(out))
	for _, ch := range channels {
		d.Register(ch)
	}
	d.defaultName = defaultName
	if _, ok := d.channels[defaultName]; !ok {
		d.defaultName = ChannelLog
	}
	return d
}

// Register adds or replaces a channel.
func (d *Dispatcher) Register(ch Channel) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.channels[ch.Name()] = ch
}

// Channels returns the registered channel names, sorted.
func (d *Dispatcher) Channels() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.channels))
	for n := range d.channels {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Default returns the default channel name.
func (d *Dispatcher) Default() string {
	return d.defaultName
}

// Send delivers msg on its requested channel, or the default channel when
// the requested one is unset or not registered.
func (d *Dispatcher) Send(ctx context.Context, msg Message) error {
	d.mu.RLock()
	ch, ok := d.channels[msg.Channel]
	if !ok {
		ch = d.channels[d.defaultName]
	}
	d.mu.RUnlock()

	if err := ch.Send(ctx, msg); err != nil {
		return fmt.Errorf("notify: send via %s: %w", ch.Name(), err)
	}
	return nil
}

// LogChannel writes notifications to a writer, or the standard logger
// when none is given.
type LogChannel struct {
	out io.Writer
}

// NewLogChannel creates a LogChannel.
func NewLogChannel(out io.Writer) *LogChannel {
	return &LogChannel{out: out}
}

// Name implements Channel.
func (c *LogChannel) Name() string { return ChannelLog }

// Send implements Channel.
func (c *LogChannel) Send(_ context.Context, msg Message) error {
	var b strings.Builder
	fmt.Fprintf(&b, "notify[%s]: %s", channelLabel(msg.Channel), msg.Subject)
	if msg.Text != "" {
		fmt.Fprintf(&b, " - %s", msg.Text)
	}
	for _, f := range msg.Fields {
		fmt.Fprintf(&b, " %s=%s", f.Name, f.Value)
	}
	if c.out == nil {
		log.Print(b.String())
		return nil
	}
	_, err := fmt.Fprintln(c.out, b.String())
	return err
}

func channelLabel(name string) string {
	if name == "" {
		return "default"
	}
	return name
}
