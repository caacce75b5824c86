package bot

import (
	"strings"
	"unicode"

	"go.uber.org/zap"

	"github.com/park285/Cheese-Mancala-bot/internal/archive"
	"github.com/park285/Cheese-Mancala-bot/internal/mancala"
	"github.com/park285/Cheese-Mancala-bot/internal/msgcat"
	"github.com/park285/Cheese-Mancala-bot/internal/session"
	"github.com/park285/Cheese-Mancala-bot/internal/util"
)

// Formatter renders catalog messages for KakaoTalk.
type Formatter struct {
	cat    *msgcat.Catalog
	prefix string
	logger *zap.Logger
}

func NewFormatter(cat *msgcat.Catalog, prefix string, logger *zap.Logger) *Formatter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Formatter{cat: cat, prefix: commandPrefix(prefix), logger: logger}
}

// commandPrefix is how commands are shown: "!" stays glued ("!시작"), a word
// prefix gets a space ("/만칼라 시작").
func commandPrefix(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	last := []rune(p)[len([]rune(p))-1]
	if unicode.IsLetter(last) || unicode.IsDigit(last) {
		return p + " "
	}
	return p
}

func (f *Formatter) msg(key string, data map[string]any) string {
	if data == nil {
		data = map[string]any{}
	}
	data["Prefix"] = f.prefix
	out, err := f.cat.Render(key, data)
	if err != nil {
		f.logger.Warn("msgcat_render_error", zap.String("key", key), zap.Error(err))
		return key
	}
	return out
}

func (f *Formatter) Help() string {
	title := f.msg("help.title", nil)
	return util.SeeMore(title, f.msg("help.body", nil))
}

func (f *Formatter) Start(mode session.Mode, level mancala.Level) string {
	if mode == session.ModeVsAI {
		return f.msg("start.ai", map[string]any{"Level": string(level)})
	}
	return f.msg("start.pvp", nil)
}

// Move describes a finished move. turn is the replayed move when the
// previous board was known.
func (f *Formatter) Move(rec mancala.MoveRecord, turn *mancala.Turn, byAI bool, next mancala.Board) string {
	var lines []string
	if byAI {
		lines = append(lines, f.msg("turn.ai", map[string]any{"Pit": mancala.PitName(rec.Pit)}))
	} else {
		lines = append(lines, f.msg("turn.moved", map[string]any{"Player": rec.Player.Label(), "Pit": mancala.PitName(rec.Pit)}))
	}
	if turn != nil && turn.Captured > 0 {
		lines = append(lines, f.msg("turn.capture", map[string]any{"Player": rec.Player.Label(), "Captured": turn.Captured}))
	}
	if mancala.IsTerminal(next) {
		lines = append(lines, f.Over(next))
		return strings.Join(lines, "\n")
	}
	if rec.ExtraTurn {
		lines = append(lines, f.msg("turn.extra", map[string]any{"Player": rec.Player.Label()}))
	} else {
		lines = append(lines, f.msg("turn.next", map[string]any{"Player": next.Current.Label()}))
	}
	return strings.Join(lines, "\n")
}

func (f *Formatter) Over(b mancala.Board) string {
	data := map[string]any{"Store0": b.Store(mancala.Player0), "Store1": b.Store(mancala.Player1)}
	if p, ok := mancala.Winner(b).Winner(); ok {
		data["Winner"] = p.Label()
		return f.msg("over.win", data)
	}
	return f.msg("over.draw", data)
}

func (f *Formatter) Status(mode session.Mode, b mancala.Board, moves int) string {
	if mancala.IsTerminal(b) {
		return f.Over(b)
	}
	return f.msg("status", map[string]any{
		"Mode":   modeLabel(mode),
		"Player": b.Current.Label(),
		"Store0": b.Store(mancala.Player0),
		"Store1": b.Store(mancala.Player1),
		"Moves":  moves,
	})
}

// History lists archived games newest first, then the moves of the current game.
func (f *Formatter) History(games []*archive.Game, current []mancala.MoveRecord) string {
	var lines []string
	for _, g := range games {
		lines = append(lines, f.msg("history.line", map[string]any{
			"When":   g.EndedAt.Local().Format("01-02 15:04"),
			"Mode":   g.Mode,
			"Winner": g.Winner,
			"Store0": g.Store0,
			"Store1": g.Store1,
			"Moves":  len(g.Moves),
		}))
	}
	if len(current) > 0 {
		lines = append(lines, f.msg("history.current", map[string]any{"Moves": strings.Join(archive.Notation(current), " ")}))
	}
	if len(lines) == 0 {
		return f.msg("history.empty", nil)
	}
	if len(games) == 0 {
		return strings.Join(lines, "\n")
	}
	title := f.msg("history.title", nil)
	return util.SeeMore(title, strings.Join(lines, "\n"))
}

func (f *Formatter) Reset() string { return f.msg("reset", nil) }

func (f *Formatter) Hosted(code string) string {
	return f.msg("online.hosted", map[string]any{"Code": code})
}

func (f *Formatter) Joined() string         { return f.msg("online.joined", nil) }
func (f *Formatter) PeerJoined() string     { return f.msg("online.peer", nil) }
func (f *Formatter) OnlineDisabled() string { return f.msg("online.disabled", nil) }

// Error maps a command failure to a message.
func (f *Formatter) Error(key string, reason error) string {
	data := map[string]any{}
	if reason != nil {
		data["Reason"] = reason.Error()
	}
	return f.msg("error."+key, data)
}

func modeLabel(m session.Mode) string {
	switch m {
	case session.ModeVsAI:
		return "AI"
	case session.ModeOnline:
		return "온라인"
	}
	return "2인"
}
