package identity

import (
	"math/rand/v2"
	"strconv"

	"github.com/google/uuid"
)

// 固定词池与调色板，取值沿用前端已有的展示风格。
var adjectives = []string{
	"Anonymous", "Mysterious", "Shadowy", "Secret", "Hidden",
	"Stealthy", "Phantom", "Ghost", "Silent", "Midnight",
	"Cosmic", "Neon", "Digital", "Cyber", "Binary",
	"Quantum", "Stellar", "Void", "Echo", "Pixel",
}

var nouns = []string{
	"Panda", "Dragon", "Phoenix", "Ninja", "Samurai",
	"Wizard", "Hacker", "Coder", "Dev", "Byte",
	"Wolf", "Fox", "Owl", "Raven", "Tiger",
	"Falcon", "Bear", "Shark", "Lion", "Eagle",
}

var colors = []string{
	"#e91e63", "#9c27b0", "#673ab7", "#3f51b5", "#2196f3",
	"#03a9f4", "#00bcd4", "#009688", "#4caf50", "#8bc34a",
	"#cddc39", "#ffeb3b", "#ffc107", "#ff9800", "#ff5722",
}

// dicebear 头像风格，avatar 编码为 "style:seed"。
var avatarStyles = []string{
	"adventurer", "adventurer-neutral", "avataaars", "big-ears",
	"big-smile", "bottts", "croodles", "fun-emoji", "icons",
	"identicon", "lorelei", "micah", "miniavs", "notionists",
	"open-peeps", "personas", "pixel-art", "shapes", "thumbs",
}

// Identity 是新会话的随机展示身份。
type Identity struct {
	Name   string
	Avatar string
	Color  string
}

// Generate 从固定词池中随机组合出一个匿名身份，永不失败。
func Generate() Identity {
	name := adjectives[rand.IntN(len(adjectives))] +
		nouns[rand.IntN(len(nouns))] +
		strconv.Itoa(rand.IntN(1000))
	style := avatarStyles[rand.IntN(len(avatarStyles))]
	return Identity{
		Name:   name,
		Avatar: style + ":" + uuid.NewString(),
		Color:  colors[rand.IntN(len(colors))],
	}
}
