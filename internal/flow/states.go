package flow

import "github.com/schooltest/quizbot/internal/session"

// Conversation states. The stack in a session records how the user got
// to the current one, so "back" can walk the same path in reverse.
const (
	StateChooseRole  session.State = "choose_role"
	StateStudentMain session.State = "student_main"
	StateTeacherMain session.State = "teacher_main"

	// Test authoring (teacher).
	StateAuthorSubject         session.State = "author_subject"
	StateAuthorClasses         session.State = "author_classes"
	StateAuthorName            session.State = "author_name"
	StateAuthorQuestionType    session.State = "author_question_type"
	StateAuthorQuestionText    session.State = "author_question_text"
	StateAuthorCorrectAnswer   session.State = "author_correct_answer"
	StateAuthorOptions         session.State = "author_options"
	StateAuthorCheckComment    session.State = "author_check_comment"
	StateAuthorFinishQuestion  session.State = "author_finish_question"
	StateAuthorEditQuestions   session.State = "author_edit_questions"
	StateAuthorEditPart        session.State = "author_edit_part"
	StateAuthorEditContent     session.State = "author_edit_content"
	StateAuthorGlobalComment   session.State = "author_global_comment"
	StateAuthorFinalConfirm    session.State = "author_final_confirm"
	StateAuthorEditName        session.State = "author_edit_name"
	StateAuthorEditSubject     session.State = "author_edit_subject"
	StateAuthorEditClasses     session.State = "author_edit_classes"
	StateAuthorEditGlobComment session.State = "author_edit_global_comment"

	// Test taking (student).
	StateTakeSubject       session.State = "take_subject"
	StateTakeClass         session.State = "take_class"
	StateTakeTestName      session.State = "take_test_name"
	StateTakeSelectTest    session.State = "take_select_test"
	StateTakeStudentInfo   session.State = "take_student_info"
	StateTakeInstructions  session.State = "take_instructions"
	StateTakeAnswer        session.State = "take_answer"
	StateTakeReview        session.State = "take_review"
	StateTakeAppealSelect  session.State = "take_appeal_select"
	StateTakeAppealComment session.State = "take_appeal_comment"

	// Result review (teacher).
	StateReviewTests            session.State = "review_tests"
	StateReviewTest             session.State = "review_test"
	StateReviewStudents         session.State = "review_students"
	StateReviewStudentQuestions session.State = "review_student_questions"
	StateReviewQuestions        session.State = "review_questions"
	StateReviewAnswers          session.State = "review_answers"
	StateReviewEditScore        session.State = "review_edit_score"
	StateReviewAddComment       session.State = "review_add_comment"
	StateReviewAppeals          session.State = "review_appeals"
	StateReviewRespondAppeal    session.State = "review_respond_appeal"

	// Result viewing (student).
	StateResultsList    session.State = "results_list"
	StateResultsDetails session.State = "results_details"
)
