package smtp

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"mime/quotedprintable"
	"net/textproto"
	"sort"

	"github.com/emailmax/warmup/internal/models"
)

// BuildMessage renders the full RFC 5322 wire form of an outbound message.
// Messages carrying both text and HTML become multipart/alternative; plain
// text goes out as a single part. Bodies are quoted-printable encoded so
// non-ASCII content and literal '=' survive the declared transfer encoding.
func BuildMessage(message *models.OutboundMessage) []byte {
	buffer := bytes.NewBuffer(nil)
	headers := message.BuildHeaders()

	if message.HasRichContent() {
		buildMultipartMessage(message, headers, buffer)
	} else {
		buildPlainTextMessage(message, headers, buffer)
	}

	return buffer.Bytes()
}

func buildMultipartMessage(message *models.OutboundMessage, headers map[string]string, buffer *bytes.Buffer) {
	writer := multipart.NewWriter(buffer)
	headers["Content-Type"] = "multipart/alternative; boundary=" + writer.Boundary()

	writeHeaders(headers, buffer)

	if message.BodyText != "" {
		part, err := writer.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {"text/plain; charset=UTF-8"},
			"Content-Transfer-Encoding": {"quoted-printable"},
		})
		if err == nil {
			writeQuotedPrintable(part, message.BodyText)
		}
	}

	part, err := writer.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {"text/html; charset=UTF-8"},
		"Content-Transfer-Encoding": {"quoted-printable"},
	})
	if err == nil {
		writeQuotedPrintable(part, message.BodyHTML)
	}

	writer.Close()
}

func buildPlainTextMessage(message *models.OutboundMessage, headers map[string]string, buffer *bytes.Buffer) {
	headers["Content-Type"] = "text/plain; charset=UTF-8"
	headers["Content-Transfer-Encoding"] = "quoted-printable"
	writeHeaders(headers, buffer)
	writeQuotedPrintable(buffer, message.BodyText)
}

func writeQuotedPrintable(w io.Writer, body string) {
	qp := quotedprintable.NewWriter(w)
	qp.Write([]byte(body))
	qp.Close()
}

// writeHeaders writes headers in a stable order so the wire form is
// reproducible in tests.
func writeHeaders(headers map[string]string, buffer *bytes.Buffer) {
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		buffer.WriteString(fmt.Sprintf("%s: %s\r\n", k, headers[k]))
	}
	buffer.WriteString("\r\n")
}
