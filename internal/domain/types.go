package domain

import "time"

// Provenance is the store a record originates from. It decides where updates
// and deletes are routed.
type Provenance string

const (
	ProvenanceRemote Provenance = "remote"
	ProvenanceLocal  Provenance = "local"
	ProvenanceSeed   Provenance = "seed"
)

// Meta is embedded in every reconciled record.
type Meta struct {
	ID         string     `json:"id"`
	Provenance Provenance `json:"provenance,omitempty"`
	IsLocal    bool       `json:"isLocal,omitempty"`
}

// Stamped returns m with the given id and provenance, keeping IsLocal in step.
func (m Meta) Stamped(id string, p Provenance) Meta {
	return Meta{ID: id, Provenance: p, IsLocal: p == ProvenanceLocal}
}

type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type ListingType string

const (
	ListingSale ListingType = "sale"
	ListingRent ListingType = "rent"
)

type PropertyStatus string

const (
	PropertyAvailable PropertyStatus = "available"
	PropertySold      PropertyStatus = "sold"
	PropertyRented    PropertyStatus = "rented"
)

func (s PropertyStatus) Valid() bool {
	switch s {
	case PropertyAvailable, PropertySold, PropertyRented:
		return true
	}
	return false
}

type Property struct {
	Meta
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Location    string         `json:"location"`
	Price       string         `json:"price"`
	Type        ListingType    `json:"type"`
	Beds        int            `json:"beds"`
	Baths       int            `json:"baths"`
	Area        int            `json:"sqft"`
	Images      []string       `json:"images,omitempty"`
	Coordinates *Coordinates   `json:"coordinates,omitempty"`
	Status      PropertyStatus `json:"status"`
	Featured    bool           `json:"featured,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

func (p Property) RecordMeta() Meta { return p.Meta }

func (p Property) WithMeta(m Meta) Property {
	p.Meta = m
	return p
}

type ProjectStatus string

const (
	ProjectPlanning          ProjectStatus = "Planning"
	ProjectUnderConstruction ProjectStatus = "Under Construction"
	ProjectCompleted         ProjectStatus = "Completed"
)

func (s ProjectStatus) Valid() bool {
	switch s {
	case ProjectPlanning, ProjectUnderConstruction, ProjectCompleted:
		return true
	}
	return false
}

type Project struct {
	Meta
	Title       string        `json:"title"`
	Description string        `json:"description,omitempty"`
	Location    string        `json:"location"`
	Developer   string        `json:"developer,omitempty"`
	Price       string        `json:"price"`
	Status      ProjectStatus `json:"status"`
	Completion  string        `json:"completion,omitempty"`
	Units       int           `json:"units,omitempty"`
	Images      []string      `json:"images,omitempty"`
	Coordinates *Coordinates  `json:"coordinates,omitempty"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

func (p Project) RecordMeta() Meta { return p.Meta }

func (p Project) WithMeta(m Meta) Project {
	p.Meta = m
	return p
}

type InquiryStatus string

const (
	InquiryNew       InquiryStatus = "new"
	InquiryContacted InquiryStatus = "contacted"
	InquiryArchived  InquiryStatus = "archived"
)

func (s InquiryStatus) Valid() bool {
	switch s {
	case InquiryNew, InquiryContacted, InquiryArchived:
		return true
	}
	return false
}

type InquirySource string

const (
	SourceForm    InquirySource = "form"
	SourceChat    InquirySource = "chat"
	SourceViewing InquirySource = "viewing"
)

type Inquiry struct {
	Meta
	Name       string        `json:"name"`
	Email      string        `json:"email"`
	Phone      string        `json:"phone,omitempty"`
	Message    string        `json:"message"`
	PropertyID string        `json:"propertyId,omitempty"`
	Source     InquirySource `json:"source,omitempty"`
	Status     InquiryStatus `json:"status"`
	Notes      string        `json:"notes,omitempty"`
	CreatedAt  time.Time     `json:"createdAt"`
	UpdatedAt  time.Time     `json:"updatedAt"`
}

func (i Inquiry) RecordMeta() Meta { return i.Meta }

func (i Inquiry) WithMeta(m Meta) Inquiry {
	i.Meta = m
	return i
}

type Sender string

const (
	SenderBot   Sender = "bot"
	SenderHuman Sender = "human"
)

type ChatMessage struct {
	Sender Sender    `json:"sender"`
	Text   string    `json:"text"`
	SentAt time.Time `json:"sentAt"`
}

type ChatStatus string

const (
	ChatActive   ChatStatus = "active"
	ChatArchived ChatStatus = "archived"
)

// ChatSession is one visitor conversation. VisitorID is the anonymous id of
// the visitor who opened it; only that visitor may post to it.
type ChatSession struct {
	Meta
	VisitorID   string        `json:"visitorId,omitempty"`
	VisitorName string        `json:"visitorName,omitempty"`
	Messages    []ChatMessage `json:"messages"`
	Status      ChatStatus    `json:"status"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

func (c ChatSession) RecordMeta() Meta { return c.Meta }

func (c ChatSession) WithMeta(m Meta) ChatSession {
	c.Meta = m
	return c
}

// Record is implemented by every reconciled record type. WithMeta returns a
// copy carrying m.
type Record[T any] interface {
	RecordMeta() Meta
	WithMeta(m Meta) T
}
