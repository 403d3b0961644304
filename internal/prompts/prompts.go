// Package prompts holds the instructions sent to the language model by each
// step. Wording is free to change; the markers the parsers rely on
// (python-execute fences, json fences, YES/NO, LAMA/FEDOT, VALID NO/VALID
// YES/WRONG) are not.
package prompts

import (
	"fmt"
	"strings"

	"github.com/aretw0/dsflow/pkg/domain"
	"github.com/aretw0/dsflow/pkg/ports"
)

// Catalog builds prompts for one working language.
type Catalog struct {
	language    string
	datasetsDir string
	modelsDir   string
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithLanguage sets the language answers must be written in.
func WithLanguage(lang string) Option {
	return func(c *Catalog) {
		c.language = lang
	}
}

// WithDirs sets the folders the generated code reads datasets from and
// saves models to.
func WithDirs(datasets, models string) Option {
	return func(c *Catalog) {
		if datasets != "" {
			c.datasetsDir = datasets
		}
		if models != "" {
			c.modelsDir = models
		}
	}
}

// New creates a catalog. The default language is English.
func New(opts ...Option) *Catalog {
	c := &Catalog{language: "en", datasetsDir: "datasets", modelsDir: "models"}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Language returns the working language.
func (c *Catalog) Language() string {
	return c.language
}

func (c *Catalog) system(text string) string {
	text = strings.TrimSpace(text)
	if c.language == "" || strings.EqualFold(c.language, "en") || strings.EqualFold(c.language, "english") {
		return text
	}
	return text + "\nAlways answer in the following language: " + c.language + "."
}

// Translate asks for the task to be restated in the working language.
func (c *Catalog) Translate(text string) ports.Prompt {
	return ports.Prompt{
		System: fmt.Sprintf("Translate the user's request into %s. Keep column names, file names and code unchanged. Output only the translation.", c.language),
		User:   text,
	}
}

// CodeRouter asks whether the task needs code at all.
func (c *Catalog) CodeRouter(task string) ports.Prompt {
	return ports.Prompt{
		System: c.system(`Decide whether writing code is necessary to solve the user's request.
If code is needed, answer with the single word "YES", otherwise answer with the single word "NO".`),
		User: fmt.Sprintf("Task:\n```%s```\nIs code needed?", task),
	}
}

// NoCode answers a task directly.
func (c *Catalog) NoCode(task string) ports.Prompt {
	return ports.Prompt{
		System: c.system(`You are an experienced data scientist and analyst.
Answer clearly and concisely, in language a non-specialist understands.`),
		User: task,
	}
}

// AutoMLRouter asks whether a managed AutoML system was requested.
func (c *Catalog) AutoMLRouter(task string) ports.Prompt {
	return ports.Prompt{
		System: `Determine whether the user explicitly asks to solve the task with LightAutoML, Fedot or automl in general.
If LightAutoML is requested, answer with the single word "LAMA".
If Fedot is requested, answer with the single word "FEDOT".
If automl is requested without naming a system, answer "LAMA" or "FEDOT".
Otherwise answer with the single word "NO".`,
		User: fmt.Sprintf("Task:\n```%s```", task),
	}
}

// AutoMLConfig asks for the structured training configuration.
func (c *Catalog) AutoMLConfig(task string, ds *domain.Dataset) ports.Prompt {
	return ports.Prompt{
		System: fmt.Sprintf(`You formulate tasks in machine learning terms and produce a training config.
For regression use "%s" as task_metric and "%s" as task_type.
For classification use "%s" as task_metric and "%s" as task_type.
The target must be one of the column names.
Always answer in this format:
`+"```json"+`
{"task_type": "", "target": "", "task_metric": ""}
`+"```",
			domain.MetricR2, domain.TaskTypeRegression, domain.MetricAUC, domain.TaskTypeClassification),
		User: fmt.Sprintf("Task: %s\nFile name: %s\nColumn names: %s\nSample rows:\n%s",
			task, ds.Name, strings.Join(ds.Columns, ", "), ds.Preview()),
	}
}

// Planner asks for a short enumerated plan without code.
func (c *Catalog) Planner(task string, ds *domain.Dataset) ports.Prompt {
	user := "Formulate a clear plan to solve this task:\n" + task
	if ds != nil {
		user += fmt.Sprintf("\nDataset %s:\n%s", ds.Name, ds.Preview())
	}
	return ports.Prompt{
		System: c.system(`You are an experienced data analyst and machine learning engineer.
Write a short, numbered, step-by-step plan for solving the task.
Do not write code and do not solve the task.`),
		User: user,
	}
}

// CodeGenerator asks for one self-contained executable block.
func (c *Catalog) CodeGenerator(task string, ds, test *domain.Dataset, history []domain.Message) ports.Prompt {
	var data strings.Builder
	if ds != nil {
		fmt.Fprintf(&data, "\nThe dataset is %s/%s with columns: %s.", c.datasetsDir, ds.Name, strings.Join(ds.Columns, ", "))
	}
	if test != nil {
		fmt.Fprintf(&data, "\nA test dataset is available at %s/%s.", c.datasetsDir, test.Name)
	}
	return ports.Prompt{
		System: c.system(fmt.Sprintf(`You are a senior Python developer solving the user's data science task.
Task: %s%s
Rules:
- Write the whole solution as one block fenced as `+"```python-execute"+`.
- The code must not ask for input; use only the information you already have.
- Datasets are in the %s/ folder; save models in the %s/ folder.
- Print every metric you compute with print().
- If an execution error is reported, fix it and send the full corrected code.
- If earlier messages contain code, rewrite it entirely.`, task, data.String(), c.datasetsDir, c.modelsDir)),
		User:    "Based on the previous messages, solve the task.",
		History: history,
	}
}

// ResultSummarizer asks for the models and metrics of an execution output.
func (c *Catalog) ResultSummarizer(task, output string) ports.Prompt {
	return ports.Prompt{
		System: `State briefly which models were used and which metrics were obtained.
Always answer in this format:
Models:
- model_1: model_name
Metrics:
- metric_1: metric_value
Write metric names as ROC-AUC, F1, RMSE, ACCURACY, PRECISION, RECALL, R2.`,
		User: fmt.Sprintf("Task:\n%s\nExecution output:\n%s", task, output),
	}
}

// Validator asks for the closed three-way verdict.
func (c *Catalog) Validator(task, plan, code, result string) ports.Prompt {
	return ports.Prompt{
		System: `You check whether a solution to a data science task is correct and whether it needs improvement.
Answer "VALID NO" if the solution is correct and the user did not ask for improvement.
Answer "VALID YES" if the solution is correct but the user asked for a better result and it can be improved.
Answer "WRONG" followed by detailed feedback if the solution is incorrect.`,
		User: fmt.Sprintf("Task:\n%s\nPlan:\n%s\nCode:\n%s\nExecution result:\n%s", task, plan, code, result),
	}
}

// Improvement asks for exactly one improvement direction.
func (c *Catalog) Improvement(task, code, result, feedback string) ports.Prompt {
	return ports.Prompt{
		System: c.system(`You are an experienced machine learning engineer.
Explain why the result was obtained, then propose ONE concrete way to improve it
(feature engineering, model choice, hyperparameters). Never list alternatives.
Give a textual instruction without code and do not repeat earlier improvements.`),
		User: fmt.Sprintf("Task:\n%s\nCode:\n```%s\n%s\n```\nResult:\n%s\nPrevious improvements and results:\n%s",
			task, "python-execute", code, result, feedback),
	}
}

// FinalSummarizer asks for the consolidated report.
func (c *Catalog) FinalSummarizer(task, outline string) ports.Prompt {
	return ports.Prompt{
		System: c.system(`Summarize the work done on the task for the user.
Keep the order of the outline. For each improvement describe the approach and its result.
Describe the final result in detail: how it works, which models were used, which metrics were obtained.`),
		User: fmt.Sprintf("Task:\n%s\nOutline:\n%s", task, outline),
	}
}

// TrainTestSplit asks for the final code split into training and inference.
func (c *Catalog) TrainTestSplit(code string, train, test *domain.Dataset) ports.Prompt {
	return ports.Prompt{
		System: fmt.Sprintf(`Split the code into two parts: training and inference.
Training saves the model; inference loads it and predicts on the test dataset.
Save predictions to <test dataset name>_predictions.csv including the row id.
Datasets are in the %s/ folder. Answer with exactly two blocks:
train_code:
`+"```python-execute\n...\n```"+`
test_code:
`+"```python-execute\n...\n```", c.datasetsDir),
		User: fmt.Sprintf("Code:\n```python-execute\n%s\n```\nTraining dataset: %s\nTest dataset: %s", code, train.Name, test.Name),
	}
}

// Explanation templates, selected from the step that just ran.
const (
	ExplainGeneric     = "generic"
	ExplainPlanning    = "planning"
	ExplainResults     = "results"
	ExplainValidator   = "validator"
	ExplainImprovement = "improvement"
)

var explainInstructions = map[string]string{
	ExplainGeneric: "Explain this text briefly.",
	ExplainPlanning: `Start with "This is the plan for solving the task" and list the steps in at most five words each.
Bold the steps and important words.`,
	ExplainResults:   "Say which models were used (bold them), then which metrics were obtained (bold them). Do not explain them.",
	ExplainValidator: "Say simply that the models were built successfully and the results are considered good enough. Bold important words.",
	ExplainImprovement: `In bullet points: name the model used so far, say in one sentence why its results are not satisfying,
then say in two sentences how it can be improved. Bold important words.`,
}

// Explain asks for a plain-language explanation using the named template.
func (c *Catalog) Explain(template, text string) ports.Prompt {
	instr, ok := explainInstructions[template]
	if !ok {
		instr = explainInstructions[ExplainGeneric]
	}
	return ports.Prompt{
		System: c.system(`You explain machine learning work to people without technical background.
Be brief and clear, avoid jargon such as "target" or metric names without context.`),
		User: fmt.Sprintf("Text to explain:\n%s\n%s", text, instr),
	}
}
