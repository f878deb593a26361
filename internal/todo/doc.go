// Package todo holds the in-memory task list.
//
// A task is a title and a completion flag:
//
//	{"title": "Buy milk", "completed": false}
//
// Tasks have no identity beyond their position in the list. Indices are
// contiguous from 0 and removing a task shifts every later task down by one.
//
// # Title Policy
//
// Append rejects empty and whitespace-only titles and stores the title
// trimmed. ReplaceAll applies the same non-empty rule to every task before it
// swaps the list, so a bad batch never lands partially.
//
// # Change Notification
//
// Store.Subscribe registers a callback that receives a snapshot after every
// successful mutation. Presenters re-render from that snapshot; they never
// reach into the store's slice directly.
package todo
