package views

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"
)

type JobRow struct {
	ID         int64
	Path       string
	OutputPath string
	BlockSize  int
	WindowSize int
	Levels     int
}

type WorkerRow struct {
	ID       int
	Active   bool
	Step     string
	Progress float64
	Path     string
}

const pageHead = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>blockmotion</title>
<style>
body { font-family: sans-serif; margin: 2em; }
table { border-collapse: collapse; margin-bottom: 2em; }
td, th { border: 1px solid #ccc; padding: 4px 8px; }
</style>
</head>
<body>
`

const liveScript = `<script>
const ws = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "/ws");
ws.onmessage = (event) => {
	const msg = JSON.parse(event.data);
	if (msg.type !== "worker_progress") {
		return;
	}
	const cell = document.getElementById("worker-" + msg.id);
	if (cell) {
		cell.textContent = msg.active ? msg.step + " " + msg.progress.toFixed(1) + "%" : "idle";
	}
};
</script>
`

// JobsPage lists the workers and the pending jobs, worker progress is
// refreshed from the websocket.
func JobsPage(jobs []JobRow, workers []WorkerRow) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, pageHead); err != nil {
			return err
		}

		if err := workersTable(workers).Render(ctx, w); err != nil {
			return err
		}

		if err := jobsTable(jobs).Render(ctx, w); err != nil {
			return err
		}

		_, err := io.WriteString(w, liveScript+"</body>\n</html>\n")
		return err
	})
}

func workersTable(workers []WorkerRow) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, "<h2>Workers</h2>\n<table>\n<tr><th>ID</th><th>Job</th><th>Status</th></tr>\n"); err != nil {
			return err
		}

		for _, worker := range workers {
			status := "idle"
			if worker.Active {
				status = fmt.Sprintf("%s %.1f%%", worker.Step, worker.Progress)
			}

			_, err := fmt.Fprintf(w, "<tr><td>%d</td><td>%s</td><td id=\"worker-%d\">%s</td></tr>\n",
				worker.ID, templ.EscapeString(worker.Path), worker.ID, templ.EscapeString(status))
			if err != nil {
				return err
			}
		}

		_, err := io.WriteString(w, "</table>\n")
		return err
	})
}

func jobsTable(jobs []JobRow) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w, "<h2>Queue (%d)</h2>\n", len(jobs))
		if err != nil {
			return err
		}

		if len(jobs) == 0 {
			_, err := io.WriteString(w, "<p>No pending jobs</p>\n")
			return err
		}

		_, err = io.WriteString(w, "<table>\n<tr><th>ID</th><th>Path</th><th>Output</th><th>Block</th><th>Window</th><th>Levels</th><th>Frames</th></tr>\n")
		if err != nil {
			return err
		}

		for _, job := range jobs {
			_, err := fmt.Fprintf(w, "<tr><td>%d</td><td>%s</td><td>%s</td><td>%d</td><td>%d</td><td>%d</td><td><a href=\"/jobs/%d/frames\">scores</a></td></tr>\n",
				job.ID, templ.EscapeString(job.Path), templ.EscapeString(job.OutputPath),
				job.BlockSize, job.WindowSize, job.Levels, job.ID)
			if err != nil {
				return err
			}
		}

		_, err = io.WriteString(w, "</table>\n")
		return err
	})
}
