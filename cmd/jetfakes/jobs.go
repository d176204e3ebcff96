package main

import (
	"fmt"
	"path/filepath"

	"github.com/tidwall/gjson"

	"jetfakes/app"
	"jetfakes/internal/errors"
)

// jobFile is a parsed batch description:
//
//	{"max_parallel": 2, "jobs": [{"input": "...", "period": "2017", "suffix": "v1", "channel": "mt", "samples": ["W"]}]}
type jobFile struct {
	MaxParallel int
	Runs        []app.RunRequest
}

func parseJobFile(data []byte) (*jobFile, error) {
	if !gjson.ValidBytes(data) {
		return nil, errors.InvalidInput("jobs file is not valid JSON")
	}
	root := gjson.ParseBytes(data)
	jobs := root.Get("jobs")
	if !jobs.IsArray() {
		return nil, errors.InvalidInput("jobs file needs a \"jobs\" array")
	}

	out := &jobFile{MaxParallel: int(root.Get("max_parallel").Int())}
	seen := map[string]int{}
	var parseErr error
	jobs.ForEach(func(_, job gjson.Result) bool {
		req := app.RunRequest{
			InputDir: job.Get("input").String(),
			Period:   job.Get("period").String(),
			Suffix:   job.Get("suffix").String(),
			Channel:  job.Get("channel").String(),
		}
		for _, s := range job.Get("samples").Array() {
			req.Samples = append(req.Samples, s.String())
		}
		n := len(out.Runs)
		if req.InputDir == "" || req.Period == "" || req.Suffix == "" {
			parseErr = errors.InvalidInput(fmt.Sprintf("job %d: input, period and suffix are required", n))
			return false
		}
		// staging directories are keyed by suffix
		if prev, ok := seen[req.Suffix]; ok {
			parseErr = errors.InvalidInput(fmt.Sprintf("job %d: suffix %q already used by job %d", n, req.Suffix, prev))
			return false
		}
		seen[req.Suffix] = n
		out.Runs = append(out.Runs, req)
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}
	if len(out.Runs) == 0 {
		return nil, errors.InvalidInput("jobs file has no jobs")
	}
	return out, nil
}

func jobName(req app.RunRequest) string {
	return fmt.Sprintf("%s%s_%s(%s)", req.Channel, req.Period, req.Suffix, filepath.Base(req.InputDir))
}
