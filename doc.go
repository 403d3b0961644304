/*
Package dsflow is a data science assistant that turns a task described in
plain language into executed analysis code and a written report.

A run walks a fixed graph of steps. The task is classified (no code, a
managed AutoML script, or generated code); generated code is planned,
written, executed in a sandbox, summarized and validated, then improved a
bounded number of times before a final report is written. Every step
returns a partial update that the scheduler merges into the run state, and
every step produces one event on the run's stream.

# Usage

	model := openai.NewProvider(nil, openai.WithAPIKey(os.Getenv("OPENAI_API_KEY")))
	assistant, err := dsflow.New(model)
	if err != nil {
		log.Fatal(err)
	}

	ds, err := dataset.LoadCSV("datasets/churn.csv")
	if err != nil {
		log.Fatal(err)
	}

	for ev := range assistant.Invoke(ctx, dsflow.Request{Message: "Predict churn", Dataset: ds}) {
		fmt.Println(ev.Step, ev.Text)
	}

Runs are isolated: each one opens its own sandbox session, and a run ID is
never executed twice at the same time. The step count of a run is capped by
a recursion limit; hitting it ends the stream with a depth_exceeded event.
*/
package dsflow
