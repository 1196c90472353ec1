package commands

import (
	"fmt"
	"runtime"
	"strconv"
	"time"

	"github.com/bwmarrin/discordgo"
)

var startTime = time.Now()

// AboutEmbed describes the running bot: uptime, memory, runtime and active players
func AboutEmbed(activePlayers int) *discordgo.MessageEmbed {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	memoryUsage := fmt.Sprintf("%.2f MB", float64(memStats.Alloc)/1024/1024)

	return &discordgo.MessageEmbed{
		Title:       "Bot Information",
		Description: "Tomakomai's Tourism Ambassador!★",
		Color:       0x00ff00,
		Timestamp:   time.Now().Format(time.RFC3339),
		Footer: &discordgo.MessageEmbedFooter{
			Text: "Created by latoulicious",
		},
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Bot Name & Version", Value: "Hokko v2.0.0", Inline: true},
			{Name: "Uptime", Value: formatUptime(time.Since(startTime)), Inline: true},
			{Name: "Memory Usage", Value: memoryUsage, Inline: true},
			{Name: "Go Version", Value: runtime.Version(), Inline: true},
			{Name: "Platform", Value: fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH), Inline: true},
			{Name: "Active Players", Value: strconv.Itoa(activePlayers), Inline: true},
		},
	}
}

// formatUptime formats the uptime duration into a human-readable string
func formatUptime(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
	case hours > 0:
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}
