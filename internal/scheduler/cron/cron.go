// Package cron wraps the robfig parser with the 5-field format used by
// schedule frequencies.
package cron

import (
	"time"

	cronlib "github.com/robfig/cron/v3"
)

type Parser struct {
	parser cronlib.Parser
}

func NewParser() *Parser {
	return &Parser{
		parser: cronlib.NewParser(cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow),
	}
}

// Next returns the first fire time strictly after the given instant.
func (p *Parser) Next(expression string, after time.Time) (time.Time, error) {
	schedule, err := p.parser.Parse(expression)
	if err != nil {
		return time.Time{}, err
	}
	return schedule.Next(after), nil
}

func (p *Parser) Validate(expression string) error {
	_, err := p.parser.Parse(expression)
	return err
}
