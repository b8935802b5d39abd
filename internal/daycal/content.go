package daycal

// The content tables are fixed at build time. Lookups wrap cyclically, so
// their lengths are independent of each other and of the year length.

// Quotes rotated through the year, one per day.
var Quotes = []string{
	"The unexamined life is not worth living.",
	"What you do every day matters more than what you do once in a while.",
	"We are what we repeatedly do.",
	"Knowing yourself is the beginning of all wisdom.",
	"The quieter you become, the more you can hear.",
	"Each morning we are born again. What we do today is what matters most.",
	"Gratitude turns what we have into enough.",
	"Wherever you go, there you are.",
	"Nothing is worth more than this day.",
	"The journey of a thousand miles begins with a single step.",
	"He who conquers himself is the mightiest warrior.",
	"You cannot step into the same river twice.",
	"Write it on your heart that every day is the best day in the year.",
	"Little by little, one travels far.",
	"It is not the mountain we conquer but ourselves.",
	"The best time to plant a tree was twenty years ago. The second best time is now.",
	"What we think, we become.",
	"Between stimulus and response there is a space. In that space is our power.",
	"Slow is smooth, smooth is fast.",
	"A year from now you may wish you had started today.",
	"Do not wait to strike till the iron is hot; make it hot by striking.",
	"The obstacle is the way.",
	"To be yourself in a world that is constantly trying to make you something else is the greatest accomplishment.",
	"Rivers know this: there is no hurry. We shall get there some day.",
	"The mind is everything. What you think you become.",
	"Turn your wounds into wisdom.",
	"Act as if what you do makes a difference. It does.",
	"How we spend our days is, of course, how we spend our lives.",
	"There is no path to happiness; happiness is the path.",
	"Begin anywhere.",
	"Every moment is a fresh beginning.",
}

// Prompts surfaced on the reflection page.
var Prompts = []string{
	"What made you smile today?",
	"What was the hardest moment of your day, and how did you meet it?",
	"What are you grateful for right now?",
	"What did you learn today that you didn't know yesterday?",
	"Who did you help today, and who helped you?",
	"What would you do differently if you could relive today?",
	"What small win deserves celebrating?",
	"What drained your energy today? What restored it?",
	"What conversation stayed with you?",
	"What are you avoiding, and why?",
	"What did you notice today that you usually overlook?",
	"How did you take care of yourself today?",
	"What surprised you today?",
	"What do you want to remember about today a year from now?",
	"Where did you feel most like yourself today?",
	"What is one thing you can let go of tonight?",
	"What progress did you make on something that matters to you?",
	"What made today different from yesterday?",
	"What are you looking forward to tomorrow?",
	"If today had a title, what would it be?",
	"What did you resist today? What did you embrace?",
	"When were you most present today?",
	"What kindness did you witness today?",
	"What would your younger self think of the day you just lived?",
	"What habit served you well today?",
	"What question are you sitting with right now?",
	"What felt heavy today? What felt light?",
	"What did you create today, however small?",
	"Where did you find beauty today?",
	"What truth did today teach you?",
}

// Affirmations rotated daily alongside the prompt.
var Affirmations = []string{
	"I am exactly where I need to be.",
	"I grow a little every day.",
	"My pace is my own.",
	"I meet today with an open heart.",
	"I am allowed to rest.",
	"Small steps still move me forward.",
	"I choose my response to what I cannot control.",
	"I am grateful for this one day.",
	"My story is still being written.",
	"I release what no longer serves me.",
	"I am more than my worst moment.",
	"Today I practice patience with myself.",
	"I notice the good around me.",
	"I have everything I need to begin.",
	"I honor how far I have come.",
	"I make room for quiet.",
	"I trust the process.",
	"My attention is my most valuable gift.",
	"I am building a life one day at a time.",
	"I welcome what this day brings.",
	"I can start again at any moment.",
	"I give myself permission to be imperfect.",
	"What I do today matters.",
	"I am present in this moment.",
	"I carry yesterday's lessons, not its weight.",
	"I am kind to the person I am becoming.",
	"I find strength in stillness.",
	"I celebrate small victories.",
	"I am enough, as I am, today.",
}
