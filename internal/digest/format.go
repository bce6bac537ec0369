package digest

import (
	"fmt"
	"strings"
)

// Markdown renders the digest for chat or email delivery.
func (d *Digest) Markdown() string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Workspace Digest\n\n")
	fmt.Fprintf(&b, "_%s to %s, %d messages_\n\n",
		d.PeriodStart.Format("Jan 2"), d.PeriodEnd.Format("Jan 2, 2006"), d.MessageCount)

	if len(d.Topics) > 0 {
		b.WriteString("## Trending Topics\n\n")
		for _, t := range d.Topics {
			fmt.Fprintf(&b, "- **%s** (%d mentions)\n", t.Keyword, t.Count)
		}
		b.WriteString("\n")
	}

	if len(d.MostReacted) > 0 {
		b.WriteString("## Most Reacted\n\n")
		for _, m := range d.MostReacted {
			fmt.Fprintf(&b, "- [#%s] %s (%d reactions", m.ChannelName, truncate(m.Text, 120), m.ReactionTotal)
			if len(m.ReactionNames) > 0 {
				fmt.Fprintf(&b, ": %s", strings.Join(m.ReactionNames, ", "))
			}
			b.WriteString(")\n")
		}
		b.WriteString("\n")
	}

	if len(d.Channels) > 0 {
		b.WriteString("## Channel Activity\n\n")
		for _, c := range d.Channels {
			fmt.Fprintf(&b, "- #%s: %d messages from %d people\n",
				c.ChannelName, c.MessageCount, c.ActiveUsers)
		}
		b.WriteString("\n")
	}

	if len(d.Contributors) > 0 {
		b.WriteString("## Top Contributors\n\n")
		for _, c := range d.Contributors {
			fmt.Fprintf(&b, "- %s: %d messages across %d channels\n",
				c.UserName, c.MessageCount, c.ChannelCount)
		}
		b.WriteString("\n")
	}

	if d.MessageCount == 0 {
		b.WriteString("No activity in this period.\n")
	}

	return strings.TrimRight(b.String(), "\n") + "\n"
}

// Text renders a plain-text variant for terminals.
func (d *Digest) Text() string {
	md := d.Markdown()
	replacer := strings.NewReplacer("# ", "", "## ", "", "**", "", "_", "")
	return replacer.Replace(md)
}
