package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/hitoshi/roombook/internal/model"
)

// SMTPConfig はメール送信の設定。
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SendFunc はSMTPでメールを送信する関数。smtp.SendMail と同じシグネチャ。
type SendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// EmailNotifier は予約イベントをHTMLメールで申請者に送る。
// 送信はサーキットブレーカー経由で行い、SMTP障害中は即座に失敗する。
type EmailNotifier struct {
	config  SMTPConfig
	send    SendFunc
	breaker *gobreaker.CircuitBreaker
}

// NewEmailNotifier はEmailNotifierを生成する。sendがnilの場合はsmtp.SendMailを使う。
func NewEmailNotifier(config SMTPConfig, send SendFunc) *EmailNotifier {
	if send == nil {
		send = smtp.SendMail
	}
	return &EmailNotifier{
		config:  config,
		send:    send,
		breaker: newBreaker("SMTP", 30*time.Second),
	}
}

var subjects = map[Event]string{
	EventSubmitted: "教室予約の申請を受け付けました",
	EventApproved:  "教室予約が承認されました",
	EventRejected:  "教室予約が却下されました",
}

var emailTemplate = template.Must(template.New("email").Parse(`<p>{{if .Name}}{{.Name}} 様{{else}}利用者 様{{end}}</p>
{{- if eq .Event "submitted"}}
<p>教室予約の申請を受け付けました。管理者の審査後に結果をお知らせします。</p>
{{- else if eq .Event "approved"}}
<p>教室予約の申請が<strong style="color: green;">承認</strong>されました。</p>
{{- else}}
<p>教室予約の申請は<strong style="color: red;">却下</strong>されました。</p>
{{- end}}
<h3>予約内容</h3>
<ul>
<li><strong>教室:</strong> {{.Room}}</li>
<li><strong>日付:</strong> {{.Date}}</li>
<li><strong>開始時刻:</strong> {{.Start}}</li>
<li><strong>終了時刻:</strong> {{.End}}</li>
<li><strong>利用目的:</strong> {{.Reason}}</li>
</ul>
{{- if eq .Event "approved"}}
<p>時間どおりに入室し、退室時は原状に戻してください。設備の不具合は事務室へ連絡してください。</p>
{{- end}}
{{- if .RejectReason}}
<h3>却下理由</h3>
<p>{{.RejectReason}}</p>
<p>内容を見直したうえで、必要に応じて改めて申請してください。</p>
{{- end}}
`))

type emailData struct {
	Event        string
	Name         string
	Room         string
	Date         string
	Start        string
	End          string
	Reason       string
	RejectReason string
}

func (n *EmailNotifier) ReservationSubmitted(ctx context.Context, r *model.Reservation) error {
	return n.notify(ctx, EventSubmitted, r, "")
}

func (n *EmailNotifier) ReservationApproved(ctx context.Context, r *model.Reservation) error {
	return n.notify(ctx, EventApproved, r, "")
}

func (n *EmailNotifier) ReservationRejected(ctx context.Context, r *model.Reservation, reason string) error {
	return n.notify(ctx, EventRejected, r, reason)
}

func (n *EmailNotifier) notify(ctx context.Context, event Event, r *model.Reservation, rejectReason string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg, err := n.buildMessage(event, r, rejectReason)
	if err != nil {
		return err
	}

	addr := net.JoinHostPort(n.config.Host, strconv.Itoa(n.config.Port))
	var auth smtp.Auth
	if n.config.Username != "" {
		auth = smtp.PlainAuth("", n.config.Username, n.config.Password, n.config.Host)
	}

	_, err = n.breaker.Execute(func() (interface{}, error) {
		return nil, n.send(addr, auth, n.config.From, []string{r.UserEmail}, msg)
	})
	if err != nil {
		return fmt.Errorf("failed to send %s email for reservation %s: %w", event, r.ID, err)
	}

	slog.Info("email notification sent",
		slog.String("event", string(event)),
		slog.String("reservation_id", r.ID),
	)
	return nil
}

// buildMessage はヘッダーとHTML本文からなるRFC 5322形式のメッセージを組み立てる。
func (n *EmailNotifier) buildMessage(event Event, r *model.Reservation, rejectReason string) ([]byte, error) {
	var body bytes.Buffer
	if err := emailTemplate.Execute(&body, emailData{
		Event:        string(event),
		Name:         r.UserName,
		Room:         r.RoomName,
		Date:         r.Date.Format(model.DateLayout),
		Start:        r.StartTime,
		End:          r.EndTime,
		Reason:       r.Reason,
		RejectReason: rejectReason,
	}); err != nil {
		return nil, fmt.Errorf("failed to render email: %w", err)
	}

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", headerValue(n.config.From))
	fmt.Fprintf(&msg, "To: %s\r\n", headerValue(r.UserEmail))
	fmt.Fprintf(&msg, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subjects[event]))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	msg.WriteString("\r\n")
	msg.Write(body.Bytes())
	return msg.Bytes(), nil
}

// headerValue はヘッダー値から改行を除去する。
func headerValue(s string) string {
	return strings.NewReplacer("\r", "", "\n", "").Replace(s)
}

var _ Notifier = (*EmailNotifier)(nil)
