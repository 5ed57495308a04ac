// Package command parses and executes the shell's line-oriented command
// language.
//
// A batch is newline-separated text. Blank lines and lines starting with '#'
// are skipped; every other line is one command, selected by its first word:
//
//	create <Kind> <name>
//	destroy <name>
//	set <object>.<property> <value...>
//	get <object>.<property>
//	call <object>.<signal>
//	bind <object>.<property> <object>.<property>
//	unbind <object>.<property> <object>.<property>
//	on <object>.<signal|notify::property>
//	  ...
//	end
//	dump [<Kind>|<object>]
//	log <debug|info|warn|error>
//	async <command>
//	sync
//
// async queues one command to run after the current batch, on the session's
// exclusive path; queued commands run in order and their failures are only
// logged. sync waits until every queued command and every update posted by an
// object has been applied.
//
// Execution stops at the first failing command. Commands that ran before it
// stay applied.
package command
