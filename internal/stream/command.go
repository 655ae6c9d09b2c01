package stream

import "strings"

// DefaultProgram 生成命令使用的下载器名
const DefaultProgram = "flowdownloader"

// Builder 根据描述符生成下载命令
type Builder struct {
	Program string
}

// NewBuilder 创建命令生成器，program 为空时使用默认值
func NewBuilder(program string) Builder {
	if strings.TrimSpace(program) == "" {
		program = DefaultProgram
	}
	return Builder{Program: program}
}

// Build 纯函数：IV 与次流 URL（存在主流时）不写入命令
func (b Builder) Build(d Descriptor) string {
	program := b.Program
	if program == "" {
		program = DefaultProgram
	}
	var sb strings.Builder
	sb.WriteString(program)
	if d.Key != "" {
		sb.WriteString(` -k "`)
		sb.WriteString(d.Key)
		sb.WriteString(`"`)
	}
	if d.PrimaryURL != "" {
		sb.WriteString(" -u ")
		sb.WriteString(d.PrimaryURL)
	} else {
		sb.WriteString(" -s -u ")
		sb.WriteString(d.SecondaryURL)
	}
	return sb.String()
}
