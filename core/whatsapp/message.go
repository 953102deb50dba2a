package whatsapp

// MessageKind identifies the outbound message shape.
type MessageKind string

const (
	// MessageText is a plain text body.
	MessageText MessageKind = "text"
	// MessageTemplate is a pre-approved Meta template send.
	MessageTemplate MessageKind = "template"
	// MessageButtons is an interactive message with quick-reply buttons.
	MessageButtons MessageKind = "buttons"
	// MessageList is an interactive list message.
	MessageList MessageKind = "list"
)

// Button is a quick-reply option. WhatsApp caps the title at 20 characters.
type Button struct {
	ID    string
	Title string
}

// ListRow is one selectable entry of a list message.
type ListRow struct {
	ID          string
	Title       string
	Description string
}

// ListSection groups list rows under a heading.
type ListSection struct {
	Title string
	Rows  []ListRow
}

// Message is an outbound message descriptor. The engine produces these; the
// transport client is responsible for delivery.
type Message struct {
	To   string
	Kind MessageKind

	Body   string
	Header string

	Template       string
	TemplateParams []string

	Buttons []Button

	ButtonText string // label of the list-open button
	Sections   []ListSection
}

// Text builds a plain text message.
func Text(to, body string) Message {
	return Message{To: to, Kind: MessageText, Body: body}
}

// Template builds a template send with positional body parameters.
func Template(to, name string, params ...string) Message {
	return Message{To: to, Kind: MessageTemplate, Template: name, TemplateParams: params}
}

// Buttons builds an interactive quick-reply message.
func Buttons(to, header, body string, buttons ...Button) Message {
	return Message{To: to, Kind: MessageButtons, Header: header, Body: body, Buttons: buttons}
}

// List builds an interactive list message.
func List(to, body, buttonText string, sections ...ListSection) Message {
	return Message{To: to, Kind: MessageList, Body: body, ButtonText: buttonText, Sections: sections}
}
