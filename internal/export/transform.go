package export

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	netmail "net/mail"
	"strings"
	"time"

	"github.com/emersion/go-message"
	"github.com/emersion/go-message/mail"

	"mailferry/internal/model"
	"mailferry/internal/util"
)

// Output is one transformed item, ready for the sinks.
type Output struct {
	MessageID string
	Folder    model.Folder
	From      string // envelope sender for the mbox From_ line
	Date      time.Time
	Raw       []byte // complete RFC 5322 message
}

// Transform converts a fetched message into its RFC 5322 representation.
// The transform is deterministic: the same input yields byte-identical
// output. The multipart boundary is derived from the message id rather than
// generated randomly, and header and attachment order are fixed.
func Transform(msg *model.Message, includeAttachments bool) (*Output, error) {
	var buf bytes.Buffer

	var h mail.Header
	h.SetDate(msg.Date.UTC())
	h.SetSubject(msg.Subject)
	h.SetMessageID(msg.ID + "@export.invalid")
	setAddressHeader(&h, "From", []string{msg.From})
	setAddressHeader(&h, "To", msg.To)
	setAddressHeader(&h, "Cc", msg.Cc)

	atts := msg.Attachments
	if !includeAttachments {
		atts = nil
	}

	if len(atts) == 0 {
		h.Header.SetContentType(bodyContentType(msg.ContentType), map[string]string{"charset": "utf-8"})
		h.Header.Set("Content-Transfer-Encoding", "quoted-printable")
		w, err := message.CreateWriter(&buf, h.Header)
		if err != nil {
			return nil, fmt.Errorf("create message writer: %w", err)
		}
		if _, err := io.WriteString(w, msg.Body); err != nil {
			return nil, fmt.Errorf("write body: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("close message writer: %w", err)
		}
		return newOutput(msg, buf.Bytes()), nil
	}

	h.Header.SetContentType("multipart/mixed", map[string]string{"boundary": boundaryFor(msg.ID)})
	mw, err := message.CreateWriter(&buf, h.Header)
	if err != nil {
		return nil, fmt.Errorf("create message writer: %w", err)
	}

	var th message.Header
	th.SetContentType(bodyContentType(msg.ContentType), map[string]string{"charset": "utf-8"})
	th.Set("Content-Transfer-Encoding", "quoted-printable")
	tw, err := mw.CreatePart(th)
	if err != nil {
		return nil, fmt.Errorf("create body part: %w", err)
	}
	if _, err := io.WriteString(tw, msg.Body); err != nil {
		return nil, fmt.Errorf("write body: %w", err)
	}
	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("close body part: %w", err)
	}

	for _, a := range atts {
		var ah message.Header
		ct := a.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		ah.SetContentType(ct, nil)
		ah.Set("Content-Transfer-Encoding", "base64")
		ah.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", util.SanitizeName(a.Name)))
		aw, err := mw.CreatePart(ah)
		if err != nil {
			return nil, fmt.Errorf("create attachment part: %w", err)
		}
		if _, err := aw.Write(a.Data); err != nil {
			return nil, fmt.Errorf("write attachment %s: %w", a.ID, err)
		}
		if err := aw.Close(); err != nil {
			return nil, fmt.Errorf("close attachment part: %w", err)
		}
	}

	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close message writer: %w", err)
	}
	return newOutput(msg, buf.Bytes()), nil
}

func newOutput(msg *model.Message, raw []byte) *Output {
	return &Output{
		MessageID: msg.ID,
		From:      envelopeSender(msg.From),
		Date:      msg.Date.UTC(),
		Raw:       raw,
	}
}

// setAddressHeader sets an address header from raw remote strings. Values
// that do not parse as RFC 5322 addresses are passed through verbatim so the
// transform stays total.
func setAddressHeader(h *mail.Header, key string, raw []string) {
	joined := strings.TrimSpace(strings.Join(raw, ", "))
	if joined == "" || joined == "," {
		return
	}
	parsed, err := netmail.ParseAddressList(joined)
	if err != nil {
		h.Set(key, joined)
		return
	}
	addrs := make([]*mail.Address, 0, len(parsed))
	for _, a := range parsed {
		addrs = append(addrs, &mail.Address{Name: a.Name, Address: a.Address})
	}
	h.SetAddressList(key, addrs)
}

// envelopeSender extracts a bare address for the mbox From_ line.
func envelopeSender(from string) string {
	if a, err := netmail.ParseAddress(from); err == nil {
		return a.Address
	}
	return "MAILER-DAEMON"
}

func bodyContentType(ct string) string {
	switch strings.ToLower(strings.TrimSpace(ct)) {
	case "text/html":
		return "text/html"
	default:
		return "text/plain"
	}
}

// boundaryFor derives a stable multipart boundary from the message id.
func boundaryFor(id string) string {
	sum := sha256.Sum256([]byte(id))
	return "mf-" + hex.EncodeToString(sum[:12])
}
