// Package notify fans out chat-ops and email notifications. Every send
// runs on its own goroutine; failures are logged and swallowed so they can
// never affect the request that triggered them.
package notify

import (
	"fmt"
	"log"
	"net/smtp"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"proofengine/internal/ports"
)

type Config struct {
	DiscordToken   string
	DiscordChannel string
	SMTPAddr       string
	SMTPFrom       string
	SupportEmail   string
}

type Fanout struct {
	cfg     Config
	discord *discordgo.Session
}

// New builds the fan-out. A missing Discord token or SMTP address disables
// that channel rather than failing startup.
func New(cfg Config) *Fanout {
	f := &Fanout{cfg: cfg}
	if cfg.DiscordToken != "" {
		session, err := discordgo.New("Bot " + cfg.DiscordToken)
		if err != nil {
			log.Printf("notify: discord session: %v", err)
		} else {
			f.discord = session
		}
	}
	return f
}

var _ ports.Notifier = (*Fanout)(nil)

func (f *Fanout) StepCompleted(sessionID, step, founderEmail, detail string) {
	go f.sendDiscord(&discordgo.MessageEmbed{
		Title: fmt.Sprintf("Onboarding step completed: %s", step),
		Color: 0x2ECC71,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Session", Value: sessionID, Inline: true},
			{Name: "Founder", Value: orDash(founderEmail), Inline: true},
			{Name: "Detail", Value: orDash(detail), Inline: false},
		},
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

func (f *Fanout) ScoringOutcome(n ports.ScoringNotice) {
	if n.Success {
		go f.sendDiscord(&discordgo.MessageEmbed{
			Title: fmt.Sprintf("ProofScore ready: %s", orDash(n.VentureName)),
			Color: 0x3498DB,
			Fields: []*discordgo.MessageEmbedField{
				{Name: "Session", Value: n.SessionID, Inline: true},
				{Name: "Score", Value: fmt.Sprintf("%.0f", n.Score), Inline: true},
				{Name: "Founder", Value: orDash(n.FounderEmail), Inline: true},
			},
			Timestamp: time.Now().Format(time.RFC3339),
		})
		go f.sendEmail(n.FounderEmail,
			fmt.Sprintf("Your ProofScore for %s is ready", n.VentureName),
			fmt.Sprintf("Congratulations! %s scored %.0f out of 100.\r\n\r\nSign in to your dashboard to review the full evaluation and your ProofVault.\r\n", n.VentureName, n.Score))
		return
	}
	go f.sendDiscord(&discordgo.MessageEmbed{
		Title: "Pitch deck analysis failed",
		Color: 0xE74C3C,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Session", Value: n.SessionID, Inline: true},
			{Name: "Founder", Value: orDash(n.FounderEmail), Inline: true},
			{Name: "Reason", Value: orDash(n.Reason), Inline: false},
		},
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

func (f *Fanout) sendDiscord(embed *discordgo.MessageEmbed) {
	if f.discord == nil || f.cfg.DiscordChannel == "" {
		return
	}
	if _, err := f.discord.ChannelMessageSendEmbed(f.cfg.DiscordChannel, embed); err != nil {
		log.Printf("notify: discord send: %v", err)
	}
}

func (f *Fanout) sendEmail(to, subject, body string) {
	if f.cfg.SMTPAddr == "" || to == "" {
		return
	}
	msg := strings.Join([]string{
		"From: " + f.cfg.SMTPFrom,
		"To: " + to,
		"Subject: " + subject,
		"",
		body,
	}, "\r\n")
	if err := smtp.SendMail(f.cfg.SMTPAddr, nil, f.cfg.SMTPFrom, []string{to}, []byte(msg)); err != nil {
		log.Printf("notify: email to %s: %v", to, err)
	}
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
