package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/ShayCichocki/crewscontrol/internal/project"
	"github.com/ShayCichocki/crewscontrol/pkg/models"
)

// promptInputs asks for each declared input in declaration order. A
// required input is asked again while empty; a value outside the enum is
// asked again.
func promptInputs(in io.Reader, out io.Writer, decls models.OrderedMap[models.InputSpec]) (models.Inputs, error) {
	inputs := models.NewOrderedMap[string]()
	scanner := bufio.NewScanner(in)

	for _, name := range decls.Keys() {
		spec, _ := decls.Get(name)
		title := spec.Title
		if title == "" {
			title = name
		}

		for {
			fmt.Fprintf(out, "Please enter %s: ", title)
			if !scanner.Scan() {
				if err := scanner.Err(); err != nil {
					return inputs, err
				}
				return inputs, fmt.Errorf("input closed before %s was entered", name)
			}
			value := strings.TrimSpace(scanner.Text())
			if err := project.ValidateInput(name, spec, value); err != nil {
				fmt.Fprintln(out, err)
				continue
			}
			inputs.Set(name, value)
			break
		}
	}
	return inputs, nil
}
