package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/CanineAnimal/revealing-science-of-kinect/internal/skeleton"
)

// errNoInput is returned when standard input ends before a prompt is
// answered.
var errNoInput = errors.New("input closed before all session parameters were entered")

// prompter reads whitespace separated answers, so several answers may be
// typed on one line.
type prompter struct {
	in  *bufio.Scanner
	out io.Writer
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	sc := bufio.NewScanner(in)
	sc.Split(bufio.ScanWords)
	return &prompter{in: sc, out: out}
}

func (p *prompter) word(prompt string) (string, error) {
	fmt.Fprint(p.out, prompt)
	if !p.in.Scan() {
		if err := p.in.Err(); err != nil {
			return "", fmt.Errorf("read answer: %w", err)
		}
		return "", errNoInput
	}
	return p.in.Text(), nil
}

// number asks until the answer parses and passes ok.
func (p *prompter) number(prompt string, bits int, ok func(float64) bool, hint string) (float64, error) {
	for {
		s, err := p.word(prompt)
		if err != nil {
			return 0, err
		}
		v, err := strconv.ParseFloat(s, bits)
		if err == nil && ok(v) {
			return v, nil
		}
		fmt.Fprintf(p.out, "%q is not %s.\n", s, hint)
	}
}

func (p *prompter) destination() (string, error) {
	return p.word("Enter destination file: ")
}

func (p *prompter) angles() (skeleton.Angles, error) {
	finite := func(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
	var a skeleton.Angles
	for _, axis := range []struct {
		name string
		dst  *float32
	}{{"X", &a.X}, {"Y", &a.Y}, {"Z", &a.Z}} {
		v, err := p.number(fmt.Sprintf("Enter camera angle around %s axis in degrees: ", axis.name), 32, finite, "a finite angle")
		if err != nil {
			return skeleton.Angles{}, err
		}
		*axis.dst = float32(v)
	}
	return a, nil
}

func (p *prompter) duration() (float64, error) {
	positive := func(v float64) bool { return v > 0 && !math.IsInf(v, 0) }
	return p.number("Enter desired length of recording in seconds: ", 64, positive, "a positive number of seconds")
}

// confirm waits for any word before the recording starts.
func (p *prompter) confirm() error {
	_, err := p.word("Enter some text to start recording. ")
	return err
}
