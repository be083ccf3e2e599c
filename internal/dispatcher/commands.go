package dispatcher

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
)

type Command string

const (
	RandomCommand Command = "random"
	HelpCommand   Command = "help"
	AboutCommand  Command = "about"
)

var commands = []Command{
	RandomCommand, HelpCommand, AboutCommand,
}

var constantReplies = map[Command]string{
	HelpCommand: fmt.Sprintf(
		"命令列表：\n%s\n也可以直接发送「随机图片 <标签>」",
		strings.Join(commandList(commands), "\n"),
	),
	AboutCommand: "随机图片机器人：按标签从图站抽取一张随机图片。",
}

const (
	unexpectedCommandReply = "不认识这个命令 :("
	randomUsageReply       = "用法：/random <标签>"
)

func clarifyCommandReply(parsedCommands []Command) string {
	similarCommands := strings.Join(commandList(parsedCommands), ", ")

	return fmt.Sprintf("您是不是想输入：%s", similarCommands)
}

func commandList(commands []Command) []string {
	return lo.Map(commands, func(c Command, _ int) string {
		return fmt.Sprintf("/%s", c)
	})
}
