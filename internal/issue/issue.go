// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"

	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/slices"

	"github.com/corext/corext/internal/dag"
	"github.com/corext/corext/pkg/module"
	"github.com/corext/corext/pkg/resource"
)

type Id int

const (
	ResourceNotFoundId Id = iota + 1
	TransportFailedId
	TimeoutId
	AbortedId
	TypeMismatchId
	UnknownTypeId
	DependencyCycleId
	ConfigLoadFailedId
	ScriptExecutionFailedId
	HandlerFailedId
	CacheUnavailableId
	WatchLimitId
)

type MarkdownMsg string

type HttpLink string

type Issue struct {
	id          Id          // ID used to lookup the issue
	mdMsg       MarkdownMsg // Markdown text that will be rendered
	suggestions []string    // short fixes attached to actionable errors
	docLinks    []HttpLink
	extLinks    []HttpLink
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) Suggestions() []string {
	return slices.Clone(i.suggestions)
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

// Render renders the issue page with the given glamour style ("dark", "light",
// "notty", "ascii" or a path to a JSON style).
func (i *Issue) Render(stylePath string) (string, error) {
	extraMd := ""
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		extraMd += "\n\n## See also\n"
		for _, link := range i.docLinks {
			extraMd += "\n- <" + string(link) + ">"
		}
		for _, link := range i.extLinks {
			extraMd += "\n- <" + string(link) + ">"
		}
	}
	return render(string(i.mdMsg)+extraMd, stylePath)
}

var (
	render = glamour.Render

	resourceNotFoundIssue = &Issue{
		id: ResourceNotFoundId,
		mdMsg: `
# Resource not found!

The server answered a resource request with a status outside 2xx and 304.

## Things you can try:
- Check the URL printed above for typos
- Verify ` + "`base_url`" + ` in your configuration; paths starting with ` + "`~/`" + ` resolve against it
- For manifests, the dependency name maps to a folder: ` + "`ui.widgets`" + ` loads ` + "`~/ui/widgets/manifest.js`",
		suggestions: []string{
			"Check the resource URL for typos",
			"Verify base_url in your configuration",
		},
	}

	transportFailedIssue = &Issue{
		id: TransportFailedId,
		mdMsg: `
# Transfer failed!

The resource could not be fetched.

## Things you can try:
- Check that the server hosting the resources is running
- For ` + "`file://`" + ` URLs, check that the file exists and is readable
- Retry with ` + "`--verbose`" + ` to see every status transition`,
		suggestions: []string{
			"Check that the server hosting the resources is running",
			"Retry with --verbose to see every status transition",
		},
	}

	timeoutIssue = &Issue{
		id: TimeoutId,
		mdMsg: `
# Request timed out!

The transfer did not complete before the configured deadline.

## Things you can try:
- Raise the deadline:
~~~cue
timeout: "1m"
~~~

- Set ` + "`timeout: \"0s\"`" + ` to disable the deadline`,
		suggestions: []string{
			"Raise the timeout in your configuration",
		},
	}

	abortedIssue = &Issue{
		id: AbortedId,
		mdMsg: `
# Request aborted!

The transfer was cancelled before it finished. This usually means the loader was
interrupted or a reload replaced the request.`,
	}

	typeMismatchIssue = &Issue{
		id: TypeMismatchId,
		mdMsg: `
# Resource type mismatch!

The server reported a content type that differs from the declared resource type.

## Things you can try:
- Configure the server to send the right ` + "`Content-Type`" + `
- Declare the type the server actually sends`,
		suggestions: []string{
			"Configure the server to send the right Content-Type",
		},
	}

	unknownTypeIssue = &Issue{
		id: UnknownTypeId,
		mdMsg: `
# Unknown resource type!

No type was declared and none can be inferred from the URL extension.

## Known extensions:
- ` + "`.js`" + ` JavaScript
- ` + "`.json`" + ` JSON
- ` + "`.txt`" + ` plain text
- ` + "`.sh`" + ` shell`,
		suggestions: []string{
			"Use a known file extension or declare the type explicitly",
		},
	}

	dependencyCycleIssue = &Issue{
		id: DependencyCycleId,
		mdMsg: `
# Dependency cycle detected!

Manifests declare dependencies on each other in a loop. No manifest in the
cycle could ever become ready.

## Things you can try:
- Run ` + "`corext deps`" + ` to print the dependency graph
- Move the shared code into a separate module both sides depend on`,
		suggestions: []string{
			"Run 'corext deps' to print the dependency graph",
			"Move shared code into a module both sides depend on",
		},
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration!

The configuration file could not be read or does not match the schema.

## Things you can try:
- Write a fresh default file:
~~~
$ corext config init
~~~

- Print the effective configuration:
~~~
$ corext config show
~~~`,
		suggestions: []string{
			"Check that the file contains valid CUE syntax",
			"Run 'corext config show' to see the effective configuration",
		},
	}

	scriptExecutionFailedIssue = &Issue{
		id: ScriptExecutionFailedId,
		mdMsg: `
# Module execution failed!

A module body raised an error while it was evaluated.

## Things you can try:
- Run with ` + "`--debug`" + ` to load the non-minified sources
- Check the modules it depends on; they run first`,
		suggestions: []string{
			"Run with --debug to load the non-minified sources",
		},
	}

	handlerFailedIssue = &Issue{
		id: HandlerFailedId,
		mdMsg: `
# Handler failed!

A handler registered on a request returned an error (or panicked) and no later
error handler recovered it. The message log above lists every transition.`,
	}

	cacheUnavailableIssue = &Issue{
		id: CacheUnavailableId,
		mdMsg: `
# Cache unavailable!

The persistent cache could not be opened.

## Things you can try:
- Check that ` + "`cache.path`" + ` is writable
- For the ` + "`s3`" + ` driver, check the endpoint and credentials
- Disable the cache:
~~~cue
cache: driver: "none"
~~~`,
		suggestions: []string{
			"Check the cache settings in your configuration",
			"Set cache.driver to \"none\" to run without a cache",
		},
	}

	watchLimitIssue = &Issue{
		id: WatchLimitId,
		mdMsg: `
# File watching stopped!

The operating system refused to watch more files, so ` + "`load --watch`" + ` cannot
see further changes.

## Things you can try:
- Narrow ` + "`watch.patterns`" + ` or add large folders to ` + "`watch.ignore`" + `
- Point ` + "`--dir`" + ` at the folder that holds your sources instead of the project root
- On Linux, raise the inotify limits:
~~~
sysctl fs.inotify.max_user_watches=524288
sysctl fs.inotify.max_user_instances=512
~~~`,
		suggestions: []string{
			"Add large folders to watch.ignore or narrow watch.patterns",
			"Watch a smaller directory with --dir",
		},
	}

	issues = map[Id]*Issue{
		resourceNotFoundIssue.Id():      resourceNotFoundIssue,
		transportFailedIssue.Id():       transportFailedIssue,
		timeoutIssue.Id():               timeoutIssue,
		abortedIssue.Id():               abortedIssue,
		typeMismatchIssue.Id():          typeMismatchIssue,
		unknownTypeIssue.Id():           unknownTypeIssue,
		dependencyCycleIssue.Id():       dependencyCycleIssue,
		configLoadFailedIssue.Id():      configLoadFailedIssue,
		scriptExecutionFailedIssue.Id(): scriptExecutionFailedIssue,
		handlerFailedIssue.Id():         handlerFailedIssue,
		cacheUnavailableIssue.Id():      cacheUnavailableIssue,
		watchLimitIssue.Id():            watchLimitIssue,
	}
)

// Values returns every registered issue ordered by Id.
func Values() []*Issue {
	out := make([]*Issue, 0, len(issues))
	for _, iss := range issues {
		out = append(out, iss)
	}
	slices.SortFunc(out, func(a, b *Issue) int { return int(a.id) - int(b.id) })
	return out
}

func Get(id Id) *Issue {
	return issues[id]
}

// Classify maps an error to the issue that explains it. It returns 0 when no
// issue applies.
func Classify(err error) Id {
	if err == nil {
		return 0
	}
	var ae *ActionableError
	if errors.As(err, &ae) {
		switch ae.Operation {
		case OpLoadConfig, OpValidateConfig:
			return ConfigLoadFailedId
		case OpOpenCache:
			return CacheUnavailableId
		case OpWatch:
			return WatchLimitId
		}
	}
	var statusErr *resource.HTTPStatusError
	switch {
	case errors.Is(err, dag.ErrCycle):
		return DependencyCycleId
	case errors.Is(err, module.ErrExecutionFailed):
		return ScriptExecutionFailedId
	case errors.Is(err, resource.ErrTimeout):
		return TimeoutId
	case errors.Is(err, resource.ErrAborted):
		return AbortedId
	case errors.Is(err, resource.ErrTypeMismatch):
		return TypeMismatchId
	case errors.Is(err, resource.ErrUnknownType):
		return UnknownTypeId
	case errors.As(err, &statusErr):
		return ResourceNotFoundId
	case errors.Is(err, resource.ErrTransport):
		return TransportFailedId
	case errors.Is(err, resource.ErrHandlerFailed):
		return HandlerFailedId
	}
	return 0
}
