package domain

import "encoding/json"

// StringList unmarshals ActivityStreams addressing fields, which may be a
// single string, an array, or absent entirely. An absent or null field is
// an empty list, never an error.
type StringList []string

func (l *StringList) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*l = nil
		return nil
	}
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*l = StringList{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*l = many
	return nil
}

// Image is an ActivityStreams icon/image attachment.
type Image struct {
	Type      string `json:"type"`
	MediaType string `json:"mediaType"`
	URL       string `json:"url"`
}

// PublicKey is the key material block of an actor document.
type PublicKey struct {
	ID           string `json:"id"`
	Owner        string `json:"owner"`
	PublicKeyPem string `json:"publicKeyPem"`
}

// ActorDocument is the JSON shape of a remote ActivityPub actor.
type ActorDocument struct {
	Context           any        `json:"@context,omitempty"`
	ID                string     `json:"id"`
	URL               string     `json:"url,omitempty"`
	Type              string     `json:"type"`
	Name              string     `json:"name,omitempty"`
	PreferredUsername string     `json:"preferredUsername,omitempty"`
	Summary           string     `json:"summary,omitempty"`
	Inbox             string     `json:"inbox"`
	Outbox            string     `json:"outbox,omitempty"`
	Followers         string     `json:"followers,omitempty"`
	Following         string     `json:"following,omitempty"`
	Icon              *Image     `json:"icon,omitempty"`
	PublicKey         *PublicKey `json:"publicKey,omitempty"`
}

// Kind classifies the document's type string.
func (d *ActorDocument) Kind() ActorKind {
	return ParseActorKind(d.Type)
}

// ObjectDocument is the JSON shape of a remote content object (Note,
// Video and compatible types are treated identically).
type ObjectDocument struct {
	Context      any        `json:"@context,omitempty"`
	ID           string     `json:"id"`
	Type         string     `json:"type"`
	URL          string     `json:"url,omitempty"`
	AttributedTo string     `json:"attributedTo,omitempty"`
	Name         string     `json:"name,omitempty"`
	Content      string     `json:"content,omitempty"`
	MediaType    string     `json:"mediaType,omitempty"`
	To           StringList `json:"to,omitempty"`
	Cc           StringList `json:"cc,omitempty"`
	Bcc          StringList `json:"bcc,omitempty"`
	InReplyTo    string     `json:"inReplyTo,omitempty"`
	Published    string     `json:"published,omitempty"`
	Updated      string     `json:"updated,omitempty"`
}

// Activity is an outbound or inbound activity envelope.
type Activity struct {
	Context   any             `json:"@context,omitempty"`
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Actor     string          `json:"actor"`
	To        StringList      `json:"to,omitempty"`
	Cc        StringList      `json:"cc,omitempty"`
	Bcc       StringList      `json:"bcc,omitempty"`
	Published string          `json:"published,omitempty"`
	Object    *ObjectDocument `json:"object,omitempty"`
}

// PublicCollection is the ActivityStreams address meaning "everyone".
const PublicCollection = "https://www.w3.org/ns/activitystreams#Public"
