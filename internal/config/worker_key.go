package config

type WorkerKeyStruct struct {
	PersistAnswersQueue  string
	SessionTeardownQueue string
}

var WorkerKey = &WorkerKeyStruct{
	PersistAnswersQueue:  "persist_answers_queue",
	SessionTeardownQueue: "session_teardown_queue",
}
