package aicpu

import (
	"fmt"
	"log"
	"time"

	"github.com/eapache/queue"
	"github.com/rs/zerolog"
	"github.com/sarchlab/davidrt/naming"
)

// Builder can build dispatchers.
type Builder struct {
	transport EventTransport
	peer      string
	groupID   uint32
	create    GroupCreator
	timeout   time.Duration
	logger    zerolog.Logger
}

// MakeBuilder creates a new Builder with default parameters.
func MakeBuilder() Builder {
	return Builder{
		peer:    "QueueScheduler",
		timeout: 3 * time.Second,
		logger:  zerolog.Nop(),
		create: func(id uint32) (*Group, error) {
			return &Group{ID: id, Name: fmt.Sprintf("Group[%d]", id)}, nil
		},
	}
}

// WithTransport sets the transport that carries events.
func (b Builder) WithTransport(t EventTransport) Builder {
	b.transport = t
	return b
}

// WithPeer sets the name of the queue scheduler endpoint.
func (b Builder) WithPeer(name string) Builder {
	b.peer = name
	return b
}

// WithGroupID sets the group shared with the queue scheduler.
func (b Builder) WithGroupID(id uint32) Builder {
	b.groupID = id
	return b
}

// WithGroupCreator sets how groups are created.
func (b Builder) WithGroupCreator(create GroupCreator) Builder {
	b.create = create
	return b
}

// WithTimeout sets how long a forwarded request may wait for the queue
// scheduler.
func (b Builder) WithTimeout(d time.Duration) Builder {
	b.timeout = d
	return b
}

// WithLogger sets the logger.
func (b Builder) WithLogger(l zerolog.Logger) Builder {
	b.logger = l
	return b
}

// Build creates a dispatcher with the given name.
func (b Builder) Build(name string) *Dispatcher {
	if b.transport == nil {
		log.Panic("dispatcher requires a transport")
	}

	if b.timeout <= 0 {
		log.Panic("dispatcher timeout must be positive")
	}

	naming.NameMustBeValid(name)

	return &Dispatcher{
		NamedBase: naming.MakeNamedBase(name),
		transport: b.transport,
		peer:      b.peer,
		groupID:   b.groupID,
		groups:    NewGroupTable(b.create),
		timeout:   b.timeout,
		logger:    b.logger.With().Str("dispatcher", name).Logger(),
		pending:   make(map[uint64]*pendingRequest),
		order:     queue.New(),
	}
}
